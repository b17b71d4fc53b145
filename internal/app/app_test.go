package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voka/internal/cache"
	"voka/internal/models"
	"voka/internal/payment"
	"voka/internal/pkg/auth"
	"voka/internal/pkg/logger"
	"voka/internal/pkg/zalo"
	"voka/internal/quiz"
	"voka/internal/storage"
	"voka/internal/storage/mocks"
)

const testChecksumKey = "checksum-key"

type fakePayments struct {
	requests []payment.LinkRequest
	err      error
}

func (f *fakePayments) CreatePaymentLink(_ context.Context, r payment.LinkRequest) (*payment.Link, error) {
	f.requests = append(f.requests, r)
	if f.err != nil {
		return nil, f.err
	}
	return &payment.Link{
		PaymentLinkID: "link-1",
		CheckoutURL:   "https://pay.example/checkout/1",
		QRCode:        "qr-payload",
		OrderCode:     r.OrderCode,
		Amount:        r.Amount,
	}, nil
}

type fakeIdentities struct {
	identity *zalo.Identity
	err      error
}

func (f *fakeIdentities) Me(context.Context, string) (*zalo.Identity, error) {
	return f.identity, f.err
}

type fixture struct {
	app        *App
	db         *mocks.MockStorage
	cache      *cache.Memory
	payments   *fakePayments
	identities *fakeIdentities
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	if cfg.ScoreWindow == 0 {
		cfg.ScoreWindow = time.Hour
	}
	if cfg.Quiz.BatchSize == 0 {
		cfg.Quiz = quiz.Config{BatchSize: 20, PrefetchThreshold: 2, FetchTimeout: time.Second}
	}
	cfg.ChecksumKey = testChecksumKey

	f := &fixture{
		db:         mocks.NewMockStorage(ctrl),
		cache:      cache.NewMemory(),
		payments:   &fakePayments{},
		identities: &fakeIdentities{},
	}
	f.app = NewApp(f.db, f.cache, f.payments, f.identities, cfg, logger.Nop())
	t.Cleanup(func() { f.app.Close(context.Background()) })
	return f
}

func (f *fixture) expectCatalog(category string, size int) {
	words := make([]models.Word, size)
	for i := range words {
		words[i] = models.Word{
			ID:       int64(i + 1),
			Term:     fmt.Sprintf("term-%d", i+1),
			Category: category,
			Meaning:  fmt.Sprintf("meaning-%d", i+1),
		}
	}
	f.db.EXPECT().CountWords(gomock.Any(), category).Return(int64(size), nil).AnyTimes()
	f.db.EXPECT().FetchWords(gomock.Any(), category, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, offset, limit int) ([]models.Word, error) {
			if offset >= len(words) {
				return nil, nil
			}
			return words[offset:min(offset+limit, len(words))], nil
		}).AnyTimes()
}

func TestProcessZaloAuth(t *testing.T) {
	f := newFixture(t, Config{})
	f.identities.identity = &zalo.Identity{ID: "zalo-42", Name: "Lan", AvatarURL: "https://img.example/lan.png"}

	f.db.EXPECT().UpsertProfile(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p models.ProfileUpsert) (int64, error) {
			require.NotNil(t, p.ZaloID)
			assert.Equal(t, "zalo-42", *p.ZaloID)
			assert.Nil(t, p.AuthID)
			assert.Equal(t, "Lan", p.Name)
			return 7, nil
		})

	res, err := f.app.ProcessZaloAuth(context.Background(), models.ZaloAuthRequest{AccessToken: "token"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.ProfileID)
	assert.False(t, res.Anonymous)

	claims, err := auth.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.ProfileID)
}

func TestProcessZaloAuthRejected(t *testing.T) {
	f := newFixture(t, Config{})
	f.identities.err = zalo.ErrInvalidToken

	_, err := f.app.ProcessZaloAuth(context.Background(), models.ZaloAuthRequest{AccessToken: "bad"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.app.ProcessZaloAuth(context.Background(), models.ZaloAuthRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestProcessAnonymousAuth(t *testing.T) {
	f := newFixture(t, Config{})
	accountID := uuid.New()

	f.db.EXPECT().CreateAccount(gomock.Any(), &models.Account{Anonymous: true}).
		Return(&models.Account{ID: accountID, Anonymous: true}, nil)
	f.db.EXPECT().UpsertProfile(gomock.Any(), models.ProfileUpsert{AuthID: &accountID}).Return(int64(3), nil)

	res, err := f.app.ProcessAnonymousAuth(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Anonymous)
	assert.Equal(t, int64(3), res.ProfileID)
}

func TestStartQuizSpendsHeart(t *testing.T) {
	f := newFixture(t, Config{DefaultHearts: 1})
	f.expectCatalog("animals", 6)
	ctx := context.Background()
	claims := &auth.Claims{ProfileID: 1, Anonymous: true}
	req := models.StartQuizRequest{Category: "animals", SpiritAnimal: "fox"}

	q, err := f.app.StartQuiz(ctx, claims, req)
	require.NoError(t, err)
	assert.Equal(t, string(quiz.StateReady), q.State)
	assert.Len(t, q.Options, 4)
	assert.NotEmpty(t, q.SessionID)

	balance := f.app.Balance(ctx, claims)
	assert.Equal(t, 0, balance.Balance)
	assert.False(t, balance.CanPlay)

	hearts, found, err := f.cache.Load(ctx, ledgerKey(1))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 0, hearts)

	_, err = f.app.StartQuiz(ctx, claims, req)
	assert.ErrorIs(t, err, ErrOutOfResource)
	assert.True(t, f.app.Balance(ctx, claims).OutOfResource)

	dismissed := f.app.DismissOutOfResource(ctx, claims)
	assert.False(t, dismissed.OutOfResource)
}

func TestStartQuizFailureKeepsHeart(t *testing.T) {
	f := newFixture(t, Config{DefaultHearts: 1})
	f.db.EXPECT().CountWords(gomock.Any(), "tiny").Return(int64(2), nil).AnyTimes()
	ctx := context.Background()
	claims := &auth.Claims{ProfileID: 1, Anonymous: true}

	_, err := f.app.StartQuiz(ctx, claims, models.StartQuizRequest{Category: "tiny", SpiritAnimal: "fox"})
	assert.ErrorIs(t, err, quiz.ErrInsufficientCatalog)

	balance := f.app.Balance(ctx, claims)
	assert.Equal(t, 1, balance.Balance)
	assert.True(t, balance.CanPlay)
}

func TestStartQuizValidation(t *testing.T) {
	f := newFixture(t, Config{DefaultHearts: 1})

	_, err := f.app.StartQuiz(context.Background(), &auth.Claims{ProfileID: 1, Anonymous: true}, models.StartQuizRequest{Category: "animals"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestWrongAnswerSubmitsScoreOnce(t *testing.T) {
	f := newFixture(t, Config{DefaultHearts: 3})
	f.expectCatalog("animals", 6)
	ctx := context.Background()
	claims := &auth.Claims{ProfileID: 9, Anonymous: true}

	var posted []models.Score
	f.db.EXPECT().InsertScore(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s models.Score) error {
			posted = append(posted, s)
			return nil
		}).Times(1)

	q, err := f.app.StartQuiz(ctx, claims, models.StartQuizRequest{Category: "animals", SpiritAnimal: "owl"})
	require.NoError(t, err)

	res, err := f.app.Answer(ctx, claims, q.SessionID, models.AnswerRequest{Selected: "not-a-meaning"})
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, string(quiz.StateGameOver), res.State)

	_, err = f.app.Answer(ctx, claims, q.SessionID, models.AnswerRequest{Selected: "not-a-meaning"})
	assert.ErrorIs(t, err, quiz.ErrSessionOver)

	again, err := f.app.Question(ctx, claims, q.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(quiz.StateGameOver), again.State)

	require.Len(t, posted, 1)
	assert.Equal(t, int64(9), posted[0].ProfileID)
	assert.Equal(t, 0, posted[0].Score)
	assert.Equal(t, "animals", posted[0].Category)

	last, err := f.app.LastScore(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, &models.LastScore{Score: 0, Category: "animals"}, last)
}

func TestSessionBelongsToProfile(t *testing.T) {
	f := newFixture(t, Config{DefaultHearts: 3})
	f.expectCatalog("animals", 6)
	ctx := context.Background()

	q, err := f.app.StartQuiz(ctx, &auth.Claims{ProfileID: 1, Anonymous: true}, models.StartQuizRequest{Category: "animals", SpiritAnimal: "owl"})
	require.NoError(t, err)

	_, err = f.app.Question(ctx, &auth.Claims{ProfileID: 2, Anonymous: true}, q.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.app.Question(ctx, &auth.Claims{ProfileID: 1, Anonymous: true}, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStoreSweep(t *testing.T) {
	store := newSessionStore(time.Minute)
	store.put(quiz.NewSession("a", 1, "animals", nil, 4))
	store.put(quiz.NewSession("b", 1, "animals", nil, 4))

	assert.Equal(t, 0, store.sweep(time.Now()))
	assert.Equal(t, 2, store.sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, store.len())
}

func TestExpireIdleEvictsLedgers(t *testing.T) {
	f := newFixture(t, Config{DefaultHearts: 5, SessionTTL: time.Hour})
	ctx := context.Background()
	claims := &auth.Claims{ProfileID: 1, Anonymous: true}

	assert.Equal(t, 5, f.app.Balance(ctx, claims).Balance)
	require.NoError(t, f.cache.Save(ctx, ledgerKey(1), 1))
	assert.Equal(t, 5, f.app.Balance(ctx, claims).Balance, "served from the cached ledger")

	f.app.expireIdle(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, f.app.Balance(ctx, claims).Balance)
}

func TestLastScoreMissing(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.app.LastScore(context.Background(), &auth.Claims{ProfileID: 5})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitScoreThrottles(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	claims := &auth.Claims{ProfileID: 4}

	f.db.EXPECT().InsertScore(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	posted, err := f.app.SubmitScore(ctx, claims, models.ScoreRequest{Score: 10, Category: "food"})
	require.NoError(t, err)
	assert.True(t, posted)

	posted, err = f.app.SubmitScore(ctx, claims, models.ScoreRequest{Score: 12, Category: "food"})
	require.NoError(t, err)
	assert.False(t, posted)

	_, err = f.app.SubmitScore(ctx, claims, models.ScoreRequest{Score: -1, Category: "food"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	last, err := f.app.LastScore(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, 12, last.Score)

	// Close flushes the buffered 12.
	f.db.EXPECT().InsertScore(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s models.Score) error {
			assert.Equal(t, 12, s.Score)
			return nil
		}).Times(1)
}

func TestLeaderboardIsCached(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	first := []models.LeaderboardEntry{{ProfileID: 1, Name: "Lan", Score: 30}}
	second := []models.LeaderboardEntry{{ProfileID: 2, Name: "Minh", Score: 40}, {ProfileID: 1, Name: "Lan", Score: 30}}

	f.db.EXPECT().Leaderboard(gomock.Any(), "animals", 10).Return(first, nil).Times(1)

	got, err := f.app.Leaderboard(ctx, "animals", 0)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = f.app.Leaderboard(ctx, "animals", 10)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	f.db.EXPECT().InsertScore(gomock.Any(), gomock.Any()).Return(nil)
	_, err = f.app.SubmitScore(ctx, &auth.Claims{ProfileID: 2}, models.ScoreRequest{Score: 40, Category: "animals"})
	require.NoError(t, err)

	f.db.EXPECT().Leaderboard(gomock.Any(), "animals", 10).Return(second, nil).Times(1)
	got, err = f.app.Leaderboard(ctx, "animals", 10)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestLeaderboardLimitIsCapped(t *testing.T) {
	f := newFixture(t, Config{})
	f.db.EXPECT().Leaderboard(gomock.Any(), "", maxLeaderboardLimit).Return([]models.LeaderboardEntry{}, nil)

	_, err := f.app.Leaderboard(context.Background(), "", 5000)
	require.NoError(t, err)
}

func TestProfileOverview(t *testing.T) {
	f := newFixture(t, Config{DefaultHearts: 5})
	ctx := context.Background()
	claims := &auth.Claims{ProfileID: 11, Anonymous: true}
	now := time.Now().UTC()

	f.db.EXPECT().GetProfile(gomock.Any(), int64(11)).Return(&models.Profile{ID: 11, Name: "Lan"}, nil)
	f.db.EXPECT().BestScore(gomock.Any(), int64(11)).Return(27, nil)
	f.db.EXPECT().ListScoreDays(gomock.Any(), int64(11)).Return([]time.Time{now, now.AddDate(0, 0, -1), now.AddDate(0, 0, -3)}, nil)

	require.NoError(t, f.app.SetPermissionDenied(ctx, claims, models.PermissionRequest{Denied: true}))

	overview, err := f.app.ProfileOverview(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, "Lan", overview.Profile.Name)
	assert.Equal(t, 27, overview.BestScore)
	assert.Equal(t, 2, overview.DailyStreak)
	assert.Equal(t, 5, overview.Balance)
	assert.True(t, overview.PermissionDenied)
}

func TestProfileOverviewMissingProfile(t *testing.T) {
	f := newFixture(t, Config{})
	f.db.EXPECT().GetProfile(gomock.Any(), int64(11)).Return(nil, storage.ErrNotFound)
	f.db.EXPECT().BestScore(gomock.Any(), int64(11)).Return(0, nil).AnyTimes()
	f.db.EXPECT().ListScoreDays(gomock.Any(), int64(11)).Return(nil, nil).AnyTimes()

	_, err := f.app.ProfileOverview(context.Background(), &auth.Claims{ProfileID: 11, Anonymous: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileOverviewFailureKeepsCreditsAuthoritative(t *testing.T) {
	f := newFixture(t, Config{DefaultCredits: 3})
	ctx := context.Background()
	claims := &auth.Claims{ProfileID: 21}

	loads := 0
	f.db.EXPECT().LoadCredits(gomock.Any(), int64(21)).
		DoAndReturn(func(context.Context, int64) (int, bool, error) {
			loads++
			if loads == 1 {
				return 0, false, context.Canceled
			}
			return 0, true, nil
		}).AnyTimes()
	f.db.EXPECT().GetProfile(gomock.Any(), int64(21)).Return(&models.Profile{ID: 21}, nil).AnyTimes()
	f.db.EXPECT().BestScore(gomock.Any(), int64(21)).Return(0, errors.New("connection reset"))
	f.db.EXPECT().ListScoreDays(gomock.Any(), int64(21)).Return(nil, nil).AnyTimes()

	_, err := f.app.ProfileOverview(ctx, claims)
	require.Error(t, err)

	balance := f.app.Balance(ctx, claims)
	assert.Equal(t, 0, balance.Balance)
	assert.False(t, balance.CanPlay)

	_, err = f.app.StartQuiz(ctx, claims, models.StartQuizRequest{Category: "animals", SpiritAnimal: "owl"})
	assert.ErrorIs(t, err, ErrOutOfResource)
}

func TestDailyStreak(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2024, 5, d, 8, 0, 0, 0, time.UTC) }

	tests := []struct {
		name string
		days []time.Time
		want int
	}{
		{name: "no scores", days: nil, want: 0},
		{name: "today only", days: []time.Time{day(10)}, want: 1},
		{name: "ending yesterday", days: []time.Time{day(9), day(8), day(7)}, want: 3},
		{name: "gap breaks streak", days: []time.Time{day(10), day(9), day(7)}, want: 2},
		{name: "stale", days: []time.Time{day(8), day(7)}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dailyStreak(tt.days, now))
		})
	}
}

func TestResetHeartsNeedsSandbox(t *testing.T) {
	ctx := context.Background()
	claims := &auth.Claims{ProfileID: 1, Anonymous: true}

	f := newFixture(t, Config{DefaultHearts: 2})
	_, err := f.app.ResetHearts(ctx, claims)
	assert.ErrorIs(t, err, ErrForbidden)

	f = newFixture(t, Config{DefaultHearts: 2, SandboxMode: true})
	require.NoError(t, f.cache.Save(ctx, ledgerKey(1), 0))
	assert.Equal(t, 0, f.app.Balance(ctx, claims).Balance)

	balance, err := f.app.ResetHearts(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, 2, balance.Balance)
}

func pendingOrderFor(f *fixture, profileID int64) *models.Product {
	product := &models.Product{ID: 2, Name: "Starter pack", Credits: 10, BonusCredits: 2, Price: decimal.NewFromInt(50000), Currency: "VND", Active: true}
	f.db.EXPECT().GetProfile(gomock.Any(), profileID).Return(&models.Profile{ID: profileID}, nil)
	f.db.EXPECT().GetActiveProduct(gomock.Any(), product.ID).Return(product, nil)
	f.db.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, o *models.Order) (*models.Order, error) {
			o.ID = uuid.New()
			o.Status = models.OrderStatusPending
			o.OrderCode = 100001
			o.PaymentID = "100001"
			return o, nil
		})
	return product
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, Config{ReturnURL: "https://voka.app/ok", CancelURL: "https://voka.app/cancel"})
	claims := &auth.Claims{ProfileID: 5}
	product := pendingOrderFor(f, 5)
	f.db.EXPECT().AttachPaymentLink(gomock.Any(), gomock.Any(), "link-1", "https://pay.example/checkout/1").Return(nil)

	res, err := f.app.CreateOrder(context.Background(), claims, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/checkout/1", res.CheckoutURL)
	assert.Equal(t, "qr-payload", res.QRCode)
	assert.Equal(t, "100001", res.Reference)
	assert.Equal(t, "VOKA 100001", res.Description)

	require.Len(t, f.payments.requests, 1)
	req := f.payments.requests[0]
	assert.Equal(t, int64(50000), req.Amount)
	assert.Equal(t, int64(100001), req.OrderCode)
	assert.Equal(t, "https://voka.app/ok", req.ReturnURL)
}

func TestCreateOrderProviderFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.payments.err = payment.ErrProvider
	product := pendingOrderFor(f, 5)
	f.db.EXPECT().FailOrder(gomock.Any(), gomock.Any()).Return(nil)

	_, err := f.app.CreateOrder(context.Background(), &auth.Claims{ProfileID: 5}, product.ID)
	assert.ErrorIs(t, err, ErrProviderFailure)
}

func TestCreateOrderRejectsCaller(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	_, err := f.app.CreateOrder(ctx, nil, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.app.CreateOrder(ctx, &auth.Claims{ProfileID: 1, Anonymous: true}, 1)
	assert.ErrorIs(t, err, ErrForbidden)

	f.db.EXPECT().GetProfile(gomock.Any(), int64(1)).Return(&models.Profile{ID: 1}, nil)
	f.db.EXPECT().GetActiveProduct(gomock.Any(), int64(99)).Return(nil, storage.ErrNotFound)
	_, err = f.app.CreateOrder(ctx, &auth.Claims{ProfileID: 1}, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func signedWebhook(t *testing.T, data map[string]any) *payment.Webhook {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	signature, err := payment.SignData(raw, testChecksumKey)
	require.NoError(t, err)
	return &payment.Webhook{Code: payment.SuccessCode, Desc: "success", Success: true, Data: raw, Signature: signature}
}

func paidWebhook(t *testing.T) *payment.Webhook {
	return signedWebhook(t, map[string]any{
		"orderCode":     100001,
		"amount":        50000,
		"description":   "VOKA 100001",
		"accountNumber": "0001",
		"reference":     "FT123",
		"code":          "00",
		"desc":          "success",
	})
}

func TestVerifyOrderGrantsCreditsOnce(t *testing.T) {
	f := newFixture(t, Config{DefaultCredits: 3})
	ctx := context.Background()
	claims := &auth.Claims{ProfileID: 5}
	order := &models.Order{ID: uuid.New(), ProfileID: 5, Credits: 12, OrderCode: 100001, PaymentID: "100001", Status: models.OrderStatusCompleted}

	f.db.EXPECT().LoadCredits(gomock.Any(), int64(5)).Return(3, true, nil).Times(1)
	assert.Equal(t, 3, f.app.Balance(ctx, claims).Balance)

	f.db.EXPECT().CompleteOrder(gomock.Any(), "100001").Return(order, true, nil)
	f.db.EXPECT().LoadCredits(gomock.Any(), int64(5)).Return(15, true, nil).Times(1)

	res, err := f.app.VerifyOrder(ctx, paidWebhook(t))
	require.NoError(t, err)
	assert.Equal(t, "payment processed", res.Message)
	assert.Equal(t, 15, f.app.Balance(ctx, claims).Balance)

	f.db.EXPECT().CompleteOrder(gomock.Any(), "100001").Return(order, false, nil)
	res, err = f.app.VerifyOrder(ctx, paidWebhook(t))
	require.NoError(t, err)
	assert.Equal(t, "already processed", res.Message)
	assert.Equal(t, 15, f.app.Balance(ctx, claims).Balance)
}

func TestVerifyOrderRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("tampered", func(t *testing.T) {
		f := newFixture(t, Config{})
		webhook := paidWebhook(t)
		webhook.Data = json.RawMessage(strings.Replace(string(webhook.Data), "50000", "5000", 1))
		_, err := f.app.VerifyOrder(ctx, webhook)
		assert.ErrorIs(t, err, payment.ErrInvalidWebhook)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.db.EXPECT().CompleteOrder(gomock.Any(), "100001").Return(nil, false, storage.ErrNotFound)
		_, err := f.app.VerifyOrder(ctx, paidWebhook(t))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("failed order", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.db.EXPECT().CompleteOrder(gomock.Any(), "100001").Return(&models.Order{}, false, storage.ErrOrderFailed)
		_, err := f.app.VerifyOrder(ctx, paidWebhook(t))
		assert.ErrorIs(t, err, ErrOrderFailed)
	})

	t.Run("missing data", func(t *testing.T) {
		f := newFixture(t, Config{})
		_, err := f.app.VerifyOrder(ctx, &payment.Webhook{Code: payment.SuccessCode})
		assert.ErrorIs(t, err, payment.ErrInvalidWebhook)
	})

	t.Run("database down", func(t *testing.T) {
		f := newFixture(t, Config{})
		down := errors.New("connection refused")
		f.db.EXPECT().CompleteOrder(gomock.Any(), "100001").Return(nil, false, down)
		_, err := f.app.VerifyOrder(ctx, paidWebhook(t))
		assert.ErrorIs(t, err, down)
	})
}

func TestVerifyOrderSandbox(t *testing.T) {
	ctx := context.Background()
	sentinel := &payment.Webhook{
		Code: payment.SuccessCode,
		Data: json.RawMessage(`{"orderCode":123,"amount":3000,"description":"VQRIO123","accountNumber":"12345678","reference":"TF230204212323"}`),
	}

	f := newFixture(t, Config{SandboxMode: true})
	res, err := f.app.VerifyOrder(ctx, sentinel)
	require.NoError(t, err)
	assert.True(t, res.Success)

	f = newFixture(t, Config{})
	_, err = f.app.VerifyOrder(ctx, sentinel)
	assert.ErrorIs(t, err, payment.ErrInvalidWebhook)
}
