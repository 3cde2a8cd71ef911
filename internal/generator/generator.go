package generator

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	customerStatuses = []string{"active", "inactive", "blocked"}
	customerWeights  = []float64{0.7, 0.2, 0.1}

	fuelTypes = []string{"PB95", "diesel", "PB98", "LPG"}

	trailerStatuses = []string{"available", "rented", "in_service", "reserved"}
	trailerWeights  = []float64{0.5, 0.3, 0.1, 0.1}

	productTypes = []string{
		"engine oil", "windshield fluid", "car bulb",
		"polishing paste", "chewing gum", "instant coffee",
		"energy drink", "mineral water", "chips", "chocolate",
		"gift set", "lighter", "ice scraper", "washing sponge",
	}

	orderStatuses = []string{"placed", "paid", "in_progress", "completed", "canceled"}
	orderWeights  = []float64{0.2, 0.3, 0.2, 0.2, 0.1}

	firstNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
		"Linda", "David", "Elizabeth", "William", "Barbara", "Richard", "Susan",
		"Joseph", "Jessica", "Thomas", "Sarah", "Charles", "Karen", "Daniel",
		"Lisa", "Matthew", "Nancy", "Anthony", "Betty", "Mark", "Margaret",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
		"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
		"Lee", "Perez", "Thompson", "White", "Harris", "Sanchez", "Clark",
	}
)

// Generator writes synthetic extract files for the previous month. The output
// deliberately includes non-numeric trailer registry numbers so the promotion
// filter has something to reject.
type Generator struct {
	log *logrus.Logger
	rng *rand.Rand
	now func() time.Time
}

// Option customizes a Generator.
type Option func(*Generator)

// WithSeed makes the output reproducible.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.rng = rand.New(rand.NewSource(seed)) }
}

// WithClock overrides the time source used for the month window.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New constructs a generator.
func New(log *logrus.Logger, opts ...Option) *Generator {
	g := &Generator{
		log: log,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Summary reports generated row counts per extract file.
type Summary struct {
	Dir       string `json:"dir"`
	Customers int    `json:"customers"`
	Fuel      int    `json:"fuel"`
	Trailers  int    `json:"trailers"`
	Products  int    `json:"products"`
	Orders    int    `json:"orders"`
}

// Run writes the five extract CSVs into dir, creating it if needed.
func (g *Generator) Run(dir string) (Summary, error) {
	summary := Summary{Dir: dir}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return summary, fmt.Errorf("generator: create %s: %w", dir, err)
	}

	monthStart, monthEnd := g.lastMonth()

	customers := g.customers()
	products := g.products()
	trailers := g.trailers(monthStart, monthEnd)
	fuel := g.fuel(monthStart, monthEnd)
	orders := g.orders(monthStart, monthEnd, len(customers), len(trailers), len(products), len(fuel))

	files := []struct {
		name    string
		header  []string
		records [][]string
		count   *int
	}{
		{"customers.csv", []string{"customer_id", "first_name", "last_name", "customer_status"}, customers, &summary.Customers},
		{"products.csv", []string{"product_id", "product_type", "quantity", "price"}, products, &summary.Products},
		{"trailers.csv", []string{"trailer_id", "registry_number", "trailer_status", "start_date", "end_date"}, trailers, &summary.Trailers},
		{"fuel.csv", []string{"fuel_id", "fuel_type", "amount", "fuel_price", "transaction_date"}, fuel, &summary.Fuel},
		{"orders.csv", []string{"order_id", "order_status", "order_date", "customer_id", "trailer_id", "product_id", "fuel_id"}, orders, &summary.Orders},
	}
	for _, file := range files {
		if err := writeCSV(filepath.Join(dir, file.name), file.header, file.records); err != nil {
			return summary, fmt.Errorf("generator: %s: %w", file.name, err)
		}
		*file.count = len(file.records)
		g.log.WithFields(logrus.Fields{"file": file.name, "rows": len(file.records)}).Info("extract generated")
	}
	return summary, nil
}

// lastMonth returns the first and last day of the previous calendar month.
func (g *Generator) lastMonth() (time.Time, time.Time) {
	now := g.now()
	firstOfCurrent := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastOfPrevious := firstOfCurrent.AddDate(0, 0, -1)
	firstOfPrevious := time.Date(lastOfPrevious.Year(), lastOfPrevious.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfPrevious, lastOfPrevious
}

func (g *Generator) customers() [][]string {
	count := g.intBetween(120, 180)
	records := make([][]string, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, []string{
			strconv.Itoa(i + 1),
			g.pick(firstNames),
			g.pick(lastNames),
			g.weighted(customerStatuses, customerWeights),
		})
	}
	return records
}

func (g *Generator) fuel(monthStart, monthEnd time.Time) [][]string {
	prices := map[string]int{
		"PB95":   g.intBetween(645, 685),
		"diesel": g.intBetween(645, 705),
		"PB98":   g.intBetween(685, 745),
		"LPG":    g.intBetween(285, 325),
	}
	count := g.intBetween(600, 900)
	records := make([][]string, 0, count)
	for i := 0; i < count; i++ {
		fuelType := g.pick(fuelTypes)
		records = append(records, []string{
			strconv.Itoa(i + 1),
			fuelType,
			strconv.Itoa(g.intBetween(5, 80)),
			strconv.Itoa(prices[fuelType]),
			g.dateBetween(monthStart, monthEnd).Format("2006-01-02"),
		})
	}
	return records
}

func (g *Generator) trailers(monthStart, monthEnd time.Time) [][]string {
	count := g.intBetween(12, 20)
	records := make([][]string, 0, count)
	for i := 0; i < count; i++ {
		status := g.weighted(trailerStatuses, trailerWeights)
		start, end := "", ""
		switch status {
		case "rented":
			rentalStart := g.dateBetween(monthStart, monthEnd)
			rentalEnd := rentalStart.AddDate(0, 0, g.intBetween(1, 21))
			if rentalEnd.After(monthEnd) {
				rentalEnd = monthEnd
			}
			start = rentalStart.Format("2006-01-02")
			end = rentalEnd.Format("2006-01-02")
		case "reserved":
			rentalStart := g.dateBetween(monthEnd.AddDate(0, 0, 1), monthEnd.AddDate(0, 0, 30))
			rentalEnd := rentalStart.AddDate(0, 0, g.intBetween(1, 14))
			start = rentalStart.Format("2006-01-02")
			end = rentalEnd.Format("2006-01-02")
		}
		records = append(records, []string{
			strconv.Itoa(i + 1),
			g.registryNumber(),
			status,
			start,
			end,
		})
	}
	return records
}

// registryNumber is usually a plain numeric registry; roughly a quarter carry
// a letter-bearing plate that promotion later rejects.
func (g *Generator) registryNumber() string {
	if g.rng.Float64() < 0.25 {
		letters := "ABCDEFGHJKLMNPRSTUWXYZ"
		return fmt.Sprintf("%d %c%c%c", g.intBetween(10, 99),
			letters[g.rng.Intn(len(letters))],
			letters[g.rng.Intn(len(letters))],
			letters[g.rng.Intn(len(letters))])
	}
	return strconv.Itoa(g.intBetween(10000, 99999))
}

func (g *Generator) products() [][]string {
	records := make([][]string, 0, len(productTypes))
	for i, productType := range productTypes {
		var price int
		switch {
		case strings.Contains(productType, "oil"):
			price = g.intBetween(3500, 15000)
		case strings.Contains(productType, "fluid"):
			price = g.intBetween(800, 2500)
		case strings.Contains(productType, "bulb"):
			price = g.intBetween(1500, 5000)
		default:
			price = g.intBetween(100, 2000)
		}
		records = append(records, []string{
			strconv.Itoa(i + 1),
			productType,
			strconv.Itoa(g.intBetween(10, 150)),
			strconv.Itoa(price),
		})
	}
	return records
}

func (g *Generator) orders(monthStart, monthEnd time.Time, customers, trailers, products, fuel int) [][]string {
	count := g.intBetween(1000, 1500)
	records := make([][]string, 0, count)
	for i := 0; i < count; i++ {
		trailerID := ""
		if g.rng.Float64() > 0.75 {
			trailerID = strconv.Itoa(g.intBetween(1, trailers))
		}
		productID := ""
		if g.rng.Float64() > 0.35 {
			productID = strconv.Itoa(g.intBetween(1, products))
		}
		records = append(records, []string{
			strconv.Itoa(i + 1),
			g.weighted(orderStatuses, orderWeights),
			g.dateBetween(monthStart, monthEnd).Format("2006-01-02"),
			strconv.Itoa(g.intBetween(1, customers)),
			trailerID,
			productID,
			strconv.Itoa(g.intBetween(1, fuel)),
		})
	}
	return records
}

func (g *Generator) intBetween(low, high int) int {
	return low + g.rng.Intn(high-low+1)
}

func (g *Generator) pick(values []string) string {
	return values[g.rng.Intn(len(values))]
}

func (g *Generator) weighted(values []string, weights []float64) string {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	target := g.rng.Float64() * total
	for i, w := range weights {
		target -= w
		if target <= 0 {
			return values[i]
		}
	}
	return values[len(values)-1]
}

func (g *Generator) dateBetween(start, end time.Time) time.Time {
	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		return start
	}
	return start.AddDate(0, 0, g.rng.Intn(days+1))
}

func writeCSV(path string, header []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}
