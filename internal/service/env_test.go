package service

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/payment"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/db"
)

type testEnv struct {
	DB   *gorm.DB
	Repo *repo.GormRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// One connection, or the pool would hand out fresh empty in-memory DBs.
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(gdb))

	return &testEnv{DB: gdb, Repo: &repo.GormRepo{DB: gdb}}
}

func (e *testEnv) createProduct(t *testing.T, name string, price, discount string, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		Name:        name,
		Description: name + " description",
		Slug:        Slugify(name),
		Price:       decimal.RequireFromString(price),
		Discount:    decimal.RequireFromString(discount),
		Stock:       stock,
		IsActive:    true,
	}
	require.NoError(t, e.DB.Create(product).Error)
	return product
}

func (e *testEnv) addToCart(t *testing.T, userID, productID uuid.UUID, quantity uint) {
	t.Helper()

	item := &models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
	require.NoError(t, e.Repo.AddToCart(context.Background(), item))
}

func (e *testEnv) productStock(t *testing.T, id uuid.UUID) int {
	t.Helper()

	var product models.Product
	require.NoError(t, e.DB.Where("id = ?", id).First(&product).Error)
	return product.Stock
}

func (e *testEnv) intentStatus(t *testing.T, id uuid.UUID) string {
	t.Helper()

	var intent models.CheckoutIntent
	require.NoError(t, e.DB.Where("id = ?", id).First(&intent).Error)
	return intent.Status
}

// fakeGateway scripts per-call results: each entry of errs is returned
// in order, a nil entry (or running out of entries) means success.
type fakeGateway struct {
	errs    []error
	calls   int
	lastReq payment.SessionRequest
}

func (g *fakeGateway) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	g.calls++
	g.lastReq = req

	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &payment.Session{
		Ref: "sess_" + req.IdempotencyKey,
		URL: "https://pay.example.test/" + req.IdempotencyKey,
	}, nil
}

func transientErr() error {
	return &payment.GatewayError{Kind: payment.KindTransient, Err: errors.New("connection reset")}
}

func declinedErr() error {
	return &payment.GatewayError{Kind: payment.KindDeclined, Err: errors.New("card declined")}
}
