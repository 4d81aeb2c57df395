package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"price-checker/internal/database"
	"price-checker/internal/models"
	"price-checker/internal/scraper"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.CheckRecord{},
		&models.Notification{},
		&models.Setting{},
	))

	database.DB = db
}

// fakeScraper returns canned results in sequence
type fakeScraper struct {
	results []*scraper.Result
	errs    []error
	calls   int
}

func (f *fakeScraper) CanHandle(url string) bool { return true }

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*scraper.Result, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	return f.results[i], nil
}

type sentAlert struct {
	title    string
	message  string
	priority string
}

type fakeTransport struct {
	sent []sentAlert
	err  error
}

func (f *fakeTransport) Send(title, message, linkURL, priority string) error {
	f.sent = append(f.sent, sentAlert{title: title, message: message, priority: priority})
	return f.err
}

func newTestMonitor(t *testing.T, fake *fakeScraper) (*MonitorService, *fakeTransport, *models.Product) {
	t.Helper()
	setupTestDB(t)

	registry := &scraper.Registry{}
	registry.Register(fake)

	transport := &fakeTransport{}
	monitor := NewMonitorService(registry, NewNotifyService(transport), 2)

	product := &models.Product{URL: "https://store.ui.com/us/en/products/udm-pro"}
	require.NoError(t, database.GetDB().Create(product).Error)

	return monitor, transport, product
}

func countRecords(t *testing.T, productID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, database.GetDB().Model(&models.CheckRecord{}).
		Where("product_id = ?", productID).Count(&n).Error)
	return n
}

func reload(t *testing.T, productID uint) *models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, database.GetDB().First(&p, productID).Error)
	return &p
}

func TestCheckProductFirstObservationDoesNotNotify(t *testing.T) {
	fake := &fakeScraper{results: []*scraper.Result{
		{Name: "Dream Machine Pro", Available: boolp(true), Price: floatp(379), Currency: "USD"},
	}}
	monitor, transport, product := newTestMonitor(t, fake)

	require.NoError(t, monitor.CheckProduct(context.Background(), product, models.KindAvailability))

	assert.Empty(t, transport.sent, "first observation must never notify")

	stored := reload(t, product.ID)
	require.NotNil(t, stored.LastAvailable)
	assert.True(t, *stored.LastAvailable)
	assert.Equal(t, int64(1), countRecords(t, product.ID))
}

func TestCheckProductRestockNotifiesOnce(t *testing.T) {
	fake := &fakeScraper{results: []*scraper.Result{
		{Name: "Dream Machine Pro", Available: boolp(false), Price: floatp(379)},
		{Name: "Dream Machine Pro", Available: boolp(true), Price: floatp(379)},
		{Name: "Dream Machine Pro", Available: boolp(true), Price: floatp(379)},
	}}
	monitor, transport, product := newTestMonitor(t, fake)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		product = reload(t, product.ID)
		require.NoError(t, monitor.CheckProduct(ctx, product, models.KindAvailability))
	}

	// false -> true fires exactly one high-priority alert; the repeated
	// true -> true check fires nothing
	require.Len(t, transport.sent, 1)
	assert.Equal(t, PriorityHigh, transport.sent[0].priority)
	assert.Contains(t, transport.sent[0].message, "back in stock")

	stored := reload(t, product.ID)
	require.NotNil(t, stored.LastAvailable)
	assert.True(t, *stored.LastAvailable)
	assert.Equal(t, int64(3), countRecords(t, product.ID))
}

func TestCheckProductPriceDropNotifies(t *testing.T) {
	fake := &fakeScraper{results: []*scraper.Result{
		{Name: "Dream Machine Pro", Available: boolp(true), Price: floatp(100), Currency: "USD"},
		{Name: "Dream Machine Pro", Available: boolp(true), Price: floatp(90), Currency: "USD"},
	}}
	monitor, transport, product := newTestMonitor(t, fake)

	ctx := context.Background()
	require.NoError(t, monitor.CheckProduct(ctx, product, models.KindPrice))
	product = reload(t, product.ID)
	require.NoError(t, monitor.CheckProduct(ctx, product, models.KindPrice))

	require.Len(t, transport.sent, 1)
	assert.Equal(t, PriorityNormal, transport.sent[0].priority)
	assert.Contains(t, transport.sent[0].message, "$100.00")
	assert.Contains(t, transport.sent[0].message, "$90.00")

	stored := reload(t, product.ID)
	require.NotNil(t, stored.LastPrice)
	assert.Equal(t, 90.0, *stored.LastPrice)
}

func TestCheckProductPriceIncreaseAndEqualAreSilent(t *testing.T) {
	fake := &fakeScraper{results: []*scraper.Result{
		{Name: "P", Available: boolp(true), Price: floatp(100)},
		{Name: "P", Available: boolp(true), Price: floatp(100)},
		{Name: "P", Available: boolp(true), Price: floatp(110)},
	}}
	monitor, transport, product := newTestMonitor(t, fake)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		product = reload(t, product.ID)
		require.NoError(t, monitor.CheckProduct(ctx, product, models.KindPrice))
	}

	assert.Empty(t, transport.sent)
	assert.Equal(t, 110.0, *reload(t, product.ID).LastPrice)
}

func TestOverlappingKindChecksKeepBothLastKnownFields(t *testing.T) {
	fake := &fakeScraper{results: []*scraper.Result{
		{Name: "P", Available: boolp(true), Price: floatp(100), Currency: "USD"},
		{Name: "P", Available: boolp(true), Price: floatp(100), Currency: "USD"},
	}}
	monitor, _, product := newTestMonitor(t, fake)

	// Availability and price batches each load their own copy of the
	// product; here the price check lands first and the availability
	// check then runs against the copy loaded before it
	stale := *product
	ctx := context.Background()
	require.NoError(t, monitor.CheckProduct(ctx, product, models.KindPrice))
	require.NoError(t, monitor.CheckProduct(ctx, &stale, models.KindAvailability))

	stored := reload(t, product.ID)
	require.NotNil(t, stored.LastPrice, "availability check must not clobber the persisted price")
	assert.Equal(t, 100.0, *stored.LastPrice)
	require.NotNil(t, stored.LastAvailable)
	assert.True(t, *stored.LastAvailable)
	require.NotNil(t, stored.LastPriceCheck)
	require.NotNil(t, stored.LastAvailabilityCheck)
	assert.Equal(t, int64(2), countRecords(t, product.ID))
}

func TestCheckProductFetchFailureRecordedWithoutStateChange(t *testing.T) {
	fake := &fakeScraper{
		results: []*scraper.Result{
			{Name: "P", Available: boolp(true), Price: floatp(50)},
			nil,
		},
		errs: []error{
			nil,
			&scraper.FetchError{URL: "x", Err: assert.AnError},
		},
	}
	monitor, transport, product := newTestMonitor(t, fake)

	ctx := context.Background()
	require.NoError(t, monitor.CheckProduct(ctx, product, models.KindAvailability))
	product = reload(t, product.ID)
	require.NoError(t, monitor.CheckProduct(ctx, product, models.KindAvailability))

	// Failure is audited but last-known state stays at the last success
	assert.Equal(t, int64(2), countRecords(t, product.ID))

	var failed models.CheckRecord
	require.NoError(t, database.GetDB().
		Where("product_id = ? AND outcome = ?", product.ID, models.OutcomeFetchError).
		First(&failed).Error)
	assert.Nil(t, failed.Available)

	stored := reload(t, product.ID)
	require.NotNil(t, stored.LastAvailable)
	assert.True(t, *stored.LastAvailable)
	assert.Equal(t, string(models.OutcomeFetchError), stored.LastStatus)
	assert.Len(t, transport.sent, 0)
}

func TestCheckProductMissingFieldIsParseError(t *testing.T) {
	// Scraper produced a name but no price: a price check must record a
	// parse error rather than fabricate a value
	fake := &fakeScraper{results: []*scraper.Result{
		{Name: "P", Available: boolp(true)},
	}}
	monitor, transport, product := newTestMonitor(t, fake)

	require.NoError(t, monitor.CheckProduct(context.Background(), product, models.KindPrice))

	var record models.CheckRecord
	require.NoError(t, database.GetDB().Where("product_id = ?", product.ID).First(&record).Error)
	assert.Equal(t, models.OutcomeParseError, record.Outcome)

	stored := reload(t, product.ID)
	assert.Nil(t, stored.LastPrice)
	assert.Empty(t, transport.sent)
}

func TestCheckProductSeedsNameFromFirstScrape(t *testing.T) {
	fake := &fakeScraper{results: []*scraper.Result{
		{Name: "Auto Detected Name", Available: boolp(true)},
	}}
	monitor, _, product := newTestMonitor(t, fake)

	require.NoError(t, monitor.CheckProduct(context.Background(), product, models.KindAvailability))

	stored := reload(t, product.ID)
	assert.Equal(t, "Auto Detected Name", stored.Name)
	assert.True(t, stored.NameAutoDetected)
}

func TestCheckProductKeepsUserSuppliedName(t *testing.T) {
	fake := &fakeScraper{results: []*scraper.Result{
		{Name: "Scraped Name", Available: boolp(true)},
	}}
	monitor, _, product := newTestMonitor(t, fake)

	product.Name = "My Custom Name"
	require.NoError(t, database.GetDB().Save(product).Error)

	require.NoError(t, monitor.CheckProduct(context.Background(), product, models.KindAvailability))

	assert.Equal(t, "My Custom Name", reload(t, product.ID).Name)
}

func TestNotificationFailureDoesNotRollBackState(t *testing.T) {
	fake := &fakeScraper{results: []*scraper.Result{
		{Name: "P", Available: boolp(false)},
		{Name: "P", Available: boolp(true)},
	}}
	monitor, transport, product := newTestMonitor(t, fake)
	transport.err = assert.AnError

	ctx := context.Background()
	require.NoError(t, monitor.CheckProduct(ctx, product, models.KindAvailability))
	product = reload(t, product.ID)
	require.NoError(t, monitor.CheckProduct(ctx, product, models.KindAvailability))

	// Delivery failed but the state update and record survive
	stored := reload(t, product.ID)
	require.NotNil(t, stored.LastAvailable)
	assert.True(t, *stored.LastAvailable)
	assert.Equal(t, int64(2), countRecords(t, product.ID))

	var notification models.Notification
	require.NoError(t, database.GetDB().Where("product_id = ?", product.ID).First(&notification).Error)
	assert.Equal(t, "failed", notification.Status)
}

func TestCheckAllProductsContinuesPastFailures(t *testing.T) {
	setupTestDB(t)

	registry := &scraper.Registry{}
	registry.Register(&fakeScraper{
		results: []*scraper.Result{nil, nil, nil},
		errs: []error{
			&scraper.FetchError{URL: "a", Err: assert.AnError},
			&scraper.FetchError{URL: "b", Err: assert.AnError},
			&scraper.FetchError{URL: "c", Err: assert.AnError},
		},
	})

	transport := &fakeTransport{}
	// Single worker so the fake's sequential results are deterministic
	monitor := NewMonitorService(registry, NewNotifyService(transport), 1)

	db := database.GetDB()
	for _, url := range []string{"https://a.example", "https://b.example", "https://c.example"} {
		require.NoError(t, db.Create(&models.Product{URL: url}).Error)
	}

	require.NoError(t, monitor.CheckAllProducts(context.Background(), models.KindAvailability))

	// Every product got its failure record despite every scrape failing
	var n int64
	require.NoError(t, db.Model(&models.CheckRecord{}).Count(&n).Error)
	assert.Equal(t, int64(3), n)
}
