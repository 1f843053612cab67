package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guarzo/listforge/internal/model"
)

// TestDataFactory provides methods for generating dynamic test data
type TestDataFactory struct {
	rand *rand.Rand
}

// NewTestDataFactory creates a new test data factory with a seeded random generator
func NewTestDataFactory(seed int64) *TestDataFactory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &TestDataFactory{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GenerateTestToken generates a random test token
func (f *TestDataFactory) GenerateTestToken() string {
	return fmt.Sprintf("test-token-%d", f.rand.Int63())
}

// GenerateTestURL generates a test URL for the given service and resource
func (f *TestDataFactory) GenerateTestURL(service, resource string) string {
	return fmt.Sprintf("https://%s.test.local/%s/%d", service, resource, f.rand.Int63())
}

// GenerateTestTitle generates a random product title
func (f *TestDataFactory) GenerateTestTitle() string {
	items := []string{"Vintage Desk Lamp", "Oak Side Table", "Road Bike Helmet", "Espresso Machine", "Leather Jacket"}
	return items[f.rand.Intn(len(items))]
}

// GenerateTestPrice generates a random price between 5 and 500 with cents
func (f *TestDataFactory) GenerateTestPrice() decimal.Decimal {
	return decimal.New(int64(f.rand.Intn(49500)+500), -2)
}

// GenerateTestCondition generates a random condition grade
func (f *TestDataFactory) GenerateTestCondition() string {
	conditions := []string{"new", "like new", "excellent", "good", "fair"}
	return conditions[f.rand.Intn(len(conditions))]
}

// GenerateTestMarketplace picks a supported marketplace
func (f *TestDataFactory) GenerateTestMarketplace() model.MarketplaceID {
	all := model.AllMarketplaces()
	return all[f.rand.Intn(len(all))]
}

// GenerateTestAnalysis generates a plausible product analysis
func (f *TestDataFactory) GenerateTestAnalysis() model.ProductAnalysis {
	price := f.GenerateTestPrice()
	return model.ProductAnalysis{
		ID:            fmt.Sprintf("analysis-%d", f.rand.Int63()),
		Title:         f.GenerateTestTitle(),
		PriceEstimate: price.StringFixed(2) + " €",
		Price:         price,
		Condition:     f.GenerateTestCondition(),
		Category:      "Home & Garden",
		Description:   "Test item in working order.",
		Keywords:      []string{"test", "item"},
	}
}
