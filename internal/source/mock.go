package source

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// Mock template identifiers.
const (
	TemplateEmployees = "employees"
	TemplateSales     = "sales"
	TemplateInventory = "inventory"
	TemplateFinancial = "financial"
	TemplateCustom    = "custom"
)

// FieldConfig describes one field of the custom template.
type FieldConfig struct {
	// Type is one of string|integer|float|date|boolean|choice.
	Type string `json:"type"`
	// Min/Max bound integer and float fields.
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	// Decimals rounds float fields; 2 when zero.
	Decimals int `json:"decimals"`
	// Choices feed the choice type.
	Choices []string `json:"choices"`
	// Pattern selects a synthesizer for string fields: name|email|phone.
	// Empty produces a generic token.
	Pattern string `json:"pattern"`
	// TrueProbability biases boolean fields; 0.5 when zero.
	TrueProbability float64 `json:"true_probability"`
}

// MockOptions configure a mock-data source.
type MockOptions struct {
	// Template selects the record synthesizer.
	Template string
	// Rows is the total number of rows to generate.
	Rows int
	// ChunkSize bounds each produced chunk.
	ChunkSize int
	// Seed makes generation reproducible; 0 seeds from the clock.
	Seed int64
	// Fields is required for the custom template: field name -> config.
	// Field order in output follows CustomOrder when set, else sorted names.
	Fields map[string]FieldConfig
	// CustomOrder optionally fixes the custom template's column order.
	CustomOrder []string
}

// rowFn synthesizes row number i (1-based across the whole run).
type rowFn func(rng *rand.Rand, i int) map[string]any

// Mock procedurally generates rows of a chosen template in fixed-size
// batches. Generation is deterministic under a fixed Seed.
type Mock struct {
	opts MockOptions

	rng      *rand.Rand
	columns  []string
	gen      rowFn
	produced int
	chunkNo  int
	opened   bool
}

// NewMock returns a generator source for the given options.
func NewMock(opts MockOptions) *Mock {
	return &Mock{opts: opts}
}

// Open validates the template and resets generation. The reported
// Info.Columns order is the template's field order.
//
// Errors (all wrapped in *Error):
//   - unknown template id
//   - rows < 1 or chunk size < 1
//   - custom template without field configs
func (m *Mock) Open(ctx context.Context) (Info, error) {
	if m.opts.Rows < 1 {
		return Info{}, &Error{Source: m.opts.Template, Err: fmt.Errorf("rows must be >= 1, got %d", m.opts.Rows)}
	}
	if m.opts.ChunkSize < 1 {
		return Info{}, &Error{Source: m.opts.Template, Err: fmt.Errorf("chunk size must be >= 1, got %d", m.opts.ChunkSize)}
	}

	switch m.opts.Template {
	case TemplateEmployees:
		m.columns = employeeColumns
		m.gen = employeeRow
	case TemplateSales:
		m.columns = salesColumns
		m.gen = salesRow
	case TemplateInventory:
		m.columns = inventoryColumns
		m.gen = inventoryRow
	case TemplateFinancial:
		m.columns = financialColumns
		m.gen = financialRow
	case TemplateCustom:
		cols, gen, err := buildCustomTemplate(m.opts.Fields, m.opts.CustomOrder)
		if err != nil {
			return Info{}, &Error{Source: m.opts.Template, Err: err}
		}
		m.columns = cols
		m.gen = gen
	default:
		return Info{}, &Error{Source: m.opts.Template, Err: fmt.Errorf("unknown template")}
	}

	seed := m.opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m.rng = rand.New(rand.NewSource(seed))
	m.produced = 0
	m.chunkNo = 0
	m.opened = true

	_ = ctx
	return Info{
		Name:      m.opts.Template,
		TotalRows: m.opts.Rows,
		Columns:   m.columns,
	}, nil
}

// Next generates the next batch. The run yields ceil(Rows/ChunkSize) chunks;
// the final chunk carries the remainder.
func (m *Mock) Next(ctx context.Context) (*RowChunk, error) {
	if !m.opened {
		return nil, &Error{Source: m.opts.Template, Err: fmt.Errorf("not opened")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remaining := m.opts.Rows - m.produced
	if remaining <= 0 {
		return nil, io.EOF
	}
	n := m.opts.ChunkSize
	if n > remaining {
		n = remaining
	}

	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, m.gen(m.rng, m.produced+i+1))
	}
	m.produced += n
	m.chunkNo++

	return &RowChunk{
		Number:      m.chunkNo,
		Rows:        rows,
		RowCount:    n,
		TypeMapping: firstChunkMapping(m.chunkNo, rows),
	}, nil
}

// Close implements Source; generators hold no resources.
func (m *Mock) Close() error {
	m.opened = false
	return nil
}

var _ Source = (*Mock)(nil)

// ---- shared synthesis helpers ----

// mockEpoch anchors generated dates so output depends only on the seed.
var mockEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func intBetween(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}

func floatBetween(rng *rand.Rand, lo, hi float64, decimals int) float64 {
	v := lo + rng.Float64()*(hi-lo)
	scale := 1.0
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	return float64(int64(v*scale+0.5)) / scale
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func dateWithinYears(rng *rand.Rand, years int) string {
	days := rng.Intn(years * 365)
	return mockEpoch.AddDate(0, 0, days).Format("2006-01-02")
}

func timestampWithinYears(rng *rand.Rand, years int) string {
	secs := rng.Int63n(int64(years) * 365 * 24 * 3600)
	return mockEpoch.Add(time.Duration(secs) * time.Second).Format("2006-01-02 15:04:05")
}

// personName draws a name with the 70% Thai weighting used across templates.
func personName(rng *rand.Rand) (first, last string) {
	if rng.Float64() < 0.7 {
		return pick(rng, thaiFirstNames), pick(rng, thaiLastNames)
	}
	return pick(rng, englishFirstNames), pick(rng, englishLastNames)
}

func emailFor(first, last string, i int) string {
	return fmt.Sprintf("%s.%s%d@example.co.th", strings.ToLower(first), strings.ToLower(last), i)
}

func phoneNumber(rng *rand.Rand) string {
	return fmt.Sprintf("08%d-%03d-%04d", rng.Intn(10), rng.Intn(1000), rng.Intn(10000))
}

// ---- employees ----

var employeeColumns = []string{
	"employee_id", "first_name", "last_name", "full_name", "email",
	"department", "position", "salary", "hire_date", "status", "phone",
	"age", "gender", "city", "performance_rating", "years_of_experience",
	"education", "created_at",
}

func employeeRow(rng *rand.Rand, i int) map[string]any {
	first, last := personName(rng)
	tier := positionTiers[rng.Intn(len(positionTiers))]
	gender := "Male"
	if rng.Intn(2) == 0 {
		gender = "Female"
	}

	return map[string]any{
		"employee_id":         fmt.Sprintf("EMP%05d", i),
		"first_name":          first,
		"last_name":           last,
		"full_name":           first + " " + last,
		"email":               emailFor(first, last, i),
		"department":          pick(rng, departments),
		"position":            tier.Position,
		"salary":              intBetween(rng, tier.MinSalary, tier.MaxSalary),
		"hire_date":           dateWithinYears(rng, 5),
		"status":              pick(rng, employeeStatuses),
		"phone":               phoneNumber(rng),
		"age":                 intBetween(rng, 20, 60),
		"gender":              gender,
		"city":                pick(rng, thaiProvinces),
		"performance_rating":  floatBetween(rng, 1, 5, 1),
		"years_of_experience": intBetween(rng, 0, 30),
		"education":           pick(rng, educationLevels),
		"created_at":          timestampWithinYears(rng, 5),
	}
}

// ---- sales ----

var salesColumns = []string{
	"transaction_id", "customer_name", "customer_code", "product_name",
	"product_code", "quantity", "unit_price", "total_amount", "currency",
	"transaction_date", "sales_rep", "region", "payment_method",
	"payment_status", "discount_percent", "tax_amount", "delivery_status",
	"order_priority", "created_at",
}

func salesRow(rng *rand.Rand, i int) map[string]any {
	p := products[rng.Intn(len(products))]
	qty := intBetween(rng, 1, 500)
	unit := floatBetween(rng, p.MinPrice, p.MaxPrice, 2)
	discount := floatBetween(rng, 0, 15, 1)
	total := round2(float64(qty) * unit * (1 - discount/100))
	repFirst, repLast := personName(rng)

	return map[string]any{
		"transaction_id":   fmt.Sprintf("TXN%07d", i),
		"customer_name":    pick(rng, customerCompanies),
		"customer_code":    fmt.Sprintf("CUST%04d", intBetween(rng, 1, 999)),
		"product_name":     p.Name,
		"product_code":     fmt.Sprintf("PRD%04d", intBetween(rng, 1, 500)),
		"quantity":         qty,
		"unit_price":       unit,
		"total_amount":     total,
		"currency":         "THB",
		"transaction_date": dateWithinYears(rng, 3),
		"sales_rep":        repFirst + " " + repLast,
		"region":           pick(rng, salesRegions),
		"payment_method":   pick(rng, paymentMethods),
		"payment_status":   pick(rng, paymentStatuses),
		"discount_percent": discount,
		"tax_amount":       round2(total * 0.07), // 7% VAT
		"delivery_status":  pick(rng, deliveryStatuses),
		"order_priority":   pick(rng, orderPriorities),
		"created_at":       timestampWithinYears(rng, 3),
	}
}

// ---- inventory ----

var inventoryColumns = []string{
	"product_id", "product_name", "sku", "category", "supplier",
	"supplier_code", "warehouse", "current_stock", "max_stock",
	"reorder_point", "unit_price", "total_value", "status", "last_updated",
	"expiry_date", "batch_number", "quality_grade", "location_rack",
	"weight_kg", "created_at",
}

func inventoryRow(rng *rand.Rand, i int) map[string]any {
	p := products[rng.Intn(len(products))]
	maxStock := intBetween(rng, 200, 5000)
	current := intBetween(rng, 0, maxStock+maxStock/5)
	reorder := maxStock / 5
	unit := floatBetween(rng, p.MinPrice, p.MaxPrice, 2)

	// ~30% of items carry no expiry.
	var expiry any
	if rng.Float64() >= 0.3 {
		expiry = dateWithinYears(rng, 4)
	}

	return map[string]any{
		"product_id":    fmt.Sprintf("INV%06d", i),
		"product_name":  p.Name,
		"sku":           fmt.Sprintf("SKU-%05d", intBetween(rng, 1, 99999)),
		"category":      p.Category,
		"supplier":      pick(rng, suppliers),
		"supplier_code": fmt.Sprintf("SUP%03d", intBetween(rng, 1, 99)),
		"warehouse":     pick(rng, warehouses),
		"current_stock": current,
		"max_stock":     maxStock,
		"reorder_point": reorder,
		"unit_price":    unit,
		"total_value":   round2(float64(current) * unit),
		"status":        stockStatus(current, reorder, maxStock),
		"last_updated":  timestampWithinYears(rng, 1),
		"expiry_date":   expiry,
		"batch_number":  fmt.Sprintf("BATCH-%04d", intBetween(rng, 1, 9999)),
		"quality_grade": pick(rng, qualityGrades),
		"location_rack": fmt.Sprintf("%c%d-%02d", 'A'+rune(rng.Intn(6)), rng.Intn(9)+1, rng.Intn(40)+1),
		"weight_kg":     floatBetween(rng, 0.1, 80, 2),
		"created_at":    timestampWithinYears(rng, 4),
	}
}

// stockStatus derives the inventory status from stock levels.
func stockStatus(current, reorder, max int) string {
	switch {
	case current == 0:
		return "Out of Stock"
	case current <= reorder:
		return "Low Stock"
	case current > max:
		return "Overstocked"
	default:
		return "In Stock"
	}
}

// ---- financial ----

var financialColumns = []string{
	"transaction_id", "account_number", "account_name", "account_type",
	"transaction_type", "amount", "currency", "transaction_date",
	"description", "reference_number", "counterparty", "approval_status",
	"approved_by", "cost_center", "project_code", "fiscal_year", "quarter",
	"tax_code", "created_at",
}

func financialRow(rng *rand.Rand, i int) map[string]any {
	tt := financialTransactionTypes[rng.Intn(len(financialTransactionTypes))]
	txDate := mockEpoch.AddDate(0, 0, rng.Intn(3*365))
	approverFirst, approverLast := personName(rng)

	return map[string]any{
		"transaction_id":   fmt.Sprintf("FIN%07d", i),
		"account_number":   fmt.Sprintf("%04d-%06d", intBetween(rng, 1000, 9999), intBetween(rng, 0, 999999)),
		"account_name":     pick(rng, customerCompanies),
		"account_type":     pick(rng, accountTypes),
		"transaction_type": tt.Type,
		"amount":           floatBetween(rng, tt.MinAmount, tt.MaxAmount, 2),
		"currency":         "THB",
		"transaction_date": txDate.Format("2006-01-02"),
		"description":      tt.Type + " - " + pick(rng, costCenters),
		"reference_number": fmt.Sprintf("REF%08d", intBetween(rng, 1, 99999999)),
		"counterparty":     pick(rng, customerCompanies),
		"approval_status":  pick(rng, approvalStatuses),
		"approved_by":      approverFirst + " " + approverLast,
		"cost_center":      pick(rng, costCenters),
		"project_code":     fmt.Sprintf("PRJ-%04d", intBetween(rng, 1, 999)),
		"fiscal_year":      txDate.Year(),
		"quarter":          fmt.Sprintf("Q%d", (int(txDate.Month())-1)/3+1),
		"tax_code":         pick(rng, taxCodes),
		"created_at":       timestampWithinYears(rng, 3),
	}
}

// ---- custom ----

func buildCustomTemplate(fields map[string]FieldConfig, order []string) ([]string, rowFn, error) {
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("custom template requires field configs")
	}

	cols := make([]string, 0, len(fields))
	if len(order) > 0 {
		for _, name := range order {
			if _, ok := fields[name]; !ok {
				return nil, nil, fmt.Errorf("custom order names unknown field %q", name)
			}
			cols = append(cols, name)
		}
		if len(cols) != len(fields) {
			return nil, nil, fmt.Errorf("custom order covers %d of %d fields", len(cols), len(fields))
		}
	} else {
		for name := range fields {
			cols = append(cols, name)
		}
		sort.Strings(cols)
	}

	for name, fc := range fields {
		switch fc.Type {
		case "string", "integer", "float", "date", "boolean", "choice":
		default:
			return nil, nil, fmt.Errorf("field %q: unknown type %q", name, fc.Type)
		}
		if fc.Type == "choice" && len(fc.Choices) == 0 {
			return nil, nil, fmt.Errorf("field %q: choice type requires choices", name)
		}
	}

	gen := func(rng *rand.Rand, i int) map[string]any {
		row := make(map[string]any, len(cols))
		for _, name := range cols {
			row[name] = customValue(rng, fields[name], i)
		}
		return row
	}
	return cols, gen, nil
}

func customValue(rng *rand.Rand, fc FieldConfig, i int) any {
	switch fc.Type {
	case "integer":
		lo, hi := int(fc.Min), int(fc.Max)
		if hi <= lo {
			lo, hi = 0, 1000
		}
		return intBetween(rng, lo, hi)
	case "float":
		lo, hi := fc.Min, fc.Max
		if hi <= lo {
			lo, hi = 0, 1000
		}
		dec := fc.Decimals
		if dec <= 0 {
			dec = 2
		}
		return floatBetween(rng, lo, hi, dec)
	case "date":
		return dateWithinYears(rng, 5)
	case "boolean":
		p := fc.TrueProbability
		if p <= 0 {
			p = 0.5
		}
		return rng.Float64() < p
	case "choice":
		return pick(rng, fc.Choices)
	default: // string
		switch fc.Pattern {
		case "name":
			first, last := personName(rng)
			return first + " " + last
		case "email":
			first, last := personName(rng)
			return emailFor(first, last, i)
		case "phone":
			return phoneNumber(rng)
		default:
			return fmt.Sprintf("value_%06d", i)
		}
	}
}
