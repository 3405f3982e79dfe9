package vouchers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/balkly/backend/config"
	"github.com/balkly/backend/internal/models"
)

type fakeVoucherStore struct {
	byCode         map[string]*models.VoucherDetail
	active         map[string]*models.Voucher // key: userID|partnerID
	findActiveSkip int                        // misses to report before active rows become visible
	createErr      error
	created        []*models.Voucher
	redeemErr      error
	redeemed       []RedeemParams
}

func newFakeVoucherStore() *fakeVoucherStore {
	return &fakeVoucherStore{
		byCode: make(map[string]*models.VoucherDetail),
		active: make(map[string]*models.Voucher),
	}
}

func activeKey(userID, partnerID uuid.UUID) string {
	return userID.String() + "|" + partnerID.String()
}

func (f *fakeVoucherStore) GetDetailByCode(_ context.Context, code string) (*models.VoucherDetail, error) {
	return f.byCode[code], nil
}

func (f *fakeVoucherStore) FindActive(_ context.Context, userID, partnerID uuid.UUID, now time.Time) (*models.Voucher, error) {
	if f.findActiveSkip > 0 {
		f.findActiveSkip--
		return nil, nil
	}
	v := f.active[activeKey(userID, partnerID)]
	if v == nil || v.Status != models.VoucherIssued || !v.ExpiresAt.After(now) {
		return nil, nil
	}
	return v, nil
}

func (f *fakeVoucherStore) ExpireLapsedFor(_ context.Context, userID, partnerID uuid.UUID, now time.Time) error {
	v := f.active[activeKey(userID, partnerID)]
	if v != nil && v.Status == models.VoucherIssued && !v.ExpiresAt.After(now) {
		v.Status = models.VoucherExpired
	}
	return nil
}

func (f *fakeVoucherStore) Create(_ context.Context, v *models.Voucher) error {
	if f.createErr != nil {
		return f.createErr
	}
	// Mirror the partial unique index: one issued row per (user, partner),
	// whether or not that row has lapsed.
	if cur := f.active[activeKey(v.UserID, v.PartnerID)]; cur != nil && cur.Status == models.VoucherIssued {
		return errors.New(`duplicate key value violates unique constraint "idx_vouchers_one_active" (SQLSTATE 23505)`)
	}
	v.ID = uuid.New()
	f.created = append(f.created, v)
	f.active[activeKey(v.UserID, v.PartnerID)] = v
	return nil
}

func (f *fakeVoucherStore) Redeem(_ context.Context, p RedeemParams) (*models.Redemption, error) {
	if f.redeemErr != nil {
		return nil, f.redeemErr
	}
	f.redeemed = append(f.redeemed, p)
	return &models.Redemption{
		ID:               uuid.New(),
		VoucherID:        p.VoucherID,
		StaffUserID:      p.StaffUserID,
		Amount:           p.Amount,
		CommissionAmount: p.CommissionAmount,
		CreatedAt:        time.Now(),
	}, nil
}

func (f *fakeVoucherStore) ListByUser(_ context.Context, userID uuid.UUID) ([]models.VoucherDetail, error) {
	var out []models.VoucherDetail
	for _, d := range f.byCode {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

type fakePartnerStore struct {
	partners map[uuid.UUID]*models.Partner
}

func (f *fakePartnerStore) GetByID(_ context.Context, id uuid.UUID) (*models.Partner, error) {
	return f.partners[id], nil
}

type fakeOfferStore struct {
	offers        map[uuid.UUID]*models.Offer
	defaultActive *models.Offer
}

func (f *fakeOfferStore) GetOffer(_ context.Context, id uuid.UUID) (*models.Offer, error) {
	return f.offers[id], nil
}

func (f *fakeOfferStore) GetDefaultActiveOffer(_ context.Context, _ uuid.UUID) (*models.Offer, error) {
	return f.defaultActive, nil
}

func testConfig() config.VoucherConfig {
	return config.VoucherConfig{
		PublicBaseURL: "https://balkly.example",
		TTLHours:      24,
		CodePrefix:    "BLK",
	}
}

func newTestService(vs *fakeVoucherStore, partner *models.Partner, offer *models.Offer, now time.Time) *Service {
	ps := &fakePartnerStore{partners: map[uuid.UUID]*models.Partner{}}
	if partner != nil {
		ps.partners[partner.ID] = partner
	}
	os := &fakeOfferStore{offers: map[uuid.UUID]*models.Offer{}}
	if offer != nil {
		os.offers[offer.ID] = offer
		if offer.Active {
			os.defaultActive = offer
		}
	}
	svc := NewService(vs, ps, os, testConfig())
	svc.now = func() time.Time { return now }
	return svc
}

func activePartner(rate float64) *models.Partner {
	return &models.Partner{ID: uuid.New(), Name: "Cafe Mika", CommissionRate: rate, Active: true}
}

func activeOffer(partnerID uuid.UUID) *models.Offer {
	return &models.Offer{ID: uuid.New(), PartnerID: partnerID, Title: "Free espresso", BenefitType: models.BenefitFreeItem, Active: true}
}

func TestClaimIssuesVoucher(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	partner := activePartner(10)
	offer := activeOffer(partner.ID)
	vs := newFakeVoucherStore()
	svc := newTestService(vs, partner, offer, now)

	userID := uuid.New()
	v, existing, err := svc.Claim(context.Background(), userID, partner.ID, offer.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if existing {
		t.Fatal("first claim reported existing")
	}
	if v.Status != models.VoucherIssued {
		t.Fatalf("status = %s, want issued", v.Status)
	}
	if want := now.Add(24 * time.Hour); !v.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", v.ExpiresAt, want)
	}
	if v.Code == "" || v.Code == "BLK-" {
		t.Fatalf("bad code %q", v.Code)
	}
}

func TestClaimReturnsExistingActiveVoucher(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	partner := activePartner(10)
	offer := activeOffer(partner.ID)
	vs := newFakeVoucherStore()
	svc := newTestService(vs, partner, offer, now)

	userID := uuid.New()
	first, _, err := svc.Claim(context.Background(), userID, partner.ID, offer.ID)
	if err != nil {
		t.Fatalf("first Claim: %v", err)
	}
	second, existing, err := svc.Claim(context.Background(), userID, partner.ID, offer.ID)
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if !existing {
		t.Fatal("re-claim did not report existing")
	}
	if second.Code != first.Code {
		t.Fatalf("re-claim minted a new code: %q vs %q", second.Code, first.Code)
	}
	if len(vs.created) != 1 {
		t.Fatalf("created %d vouchers, want 1", len(vs.created))
	}
}

func TestClaimAfterExpiryIssuesFresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	partner := activePartner(10)
	offer := activeOffer(partner.ID)
	vs := newFakeVoucherStore()
	svc := newTestService(vs, partner, offer, now)

	userID := uuid.New()
	first, _, err := svc.Claim(context.Background(), userID, partner.ID, offer.ID)
	if err != nil {
		t.Fatalf("first Claim: %v", err)
	}

	// Past the first voucher's expiry the old one no longer blocks a new claim.
	svc.now = func() time.Time { return now.Add(25 * time.Hour) }
	second, existing, err := svc.Claim(context.Background(), userID, partner.ID, offer.ID)
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if existing {
		t.Fatal("expired voucher was reused")
	}
	if second.Code == first.Code {
		t.Fatal("expired voucher code was reissued")
	}
}

func TestClaimClearsLapsedRowBeforeInsert(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	partner := activePartner(10)
	offer := activeOffer(partner.ID)
	vs := newFakeVoucherStore()
	svc := newTestService(vs, partner, offer, now)

	userID := uuid.New()
	first, _, err := svc.Claim(context.Background(), userID, partner.ID, offer.ID)
	if err != nil {
		t.Fatalf("first Claim: %v", err)
	}

	// The sweeper has not run: the lapsed row still sits on the one-active
	// index. The claim must expire it rather than collide with it.
	svc.now = func() time.Time { return now.Add(25 * time.Hour) }
	second, existing, err := svc.Claim(context.Background(), userID, partner.ID, offer.ID)
	if err != nil {
		t.Fatalf("second Claim: %v", err)
	}
	if existing {
		t.Fatal("lapsed voucher was reused")
	}
	if first.Status != models.VoucherExpired {
		t.Fatalf("lapsed voucher status = %s, want expired", first.Status)
	}
	if len(vs.created) != 2 || second.Code == first.Code {
		t.Fatalf("created %d vouchers, second code %q vs %q", len(vs.created), second.Code, first.Code)
	}
}

func TestClaimRaceFallsBackToWinner(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	partner := activePartner(10)
	offer := activeOffer(partner.ID)
	vs := newFakeVoucherStore()
	svc := newTestService(vs, partner, offer, now)

	userID := uuid.New()
	winner := &models.Voucher{
		ID: uuid.New(), Code: "BLK-WINNER", UserID: userID, PartnerID: partner.ID,
		OfferID: offer.ID, Status: models.VoucherIssued, ExpiresAt: now.Add(time.Hour),
	}
	// First FindActive misses, Create fails as if another request won the
	// partial unique index, and the re-fetch sees the winner's row.
	vs.findActiveSkip = 1
	vs.createErr = errors.New("duplicate key value violates unique constraint")
	vs.active[activeKey(userID, partner.ID)] = winner

	v, existing, err := svc.Claim(context.Background(), userID, partner.ID, offer.ID)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if !existing || v.Code != "BLK-WINNER" {
		t.Fatalf("got (%v, existing=%v), want winner voucher", v.Code, existing)
	}
}

func TestClaimRejectsInactivePartner(t *testing.T) {
	now := time.Now()
	partner := activePartner(10)
	partner.Active = false
	offer := activeOffer(partner.ID)
	svc := newTestService(newFakeVoucherStore(), partner, offer, now)

	_, _, err := svc.Claim(context.Background(), uuid.New(), partner.ID, offer.ID)
	if !errors.Is(err, ErrPartnerInactive) {
		t.Fatalf("err = %v, want ErrPartnerInactive", err)
	}
}

func TestClaimRejectsUnknownPartner(t *testing.T) {
	svc := newTestService(newFakeVoucherStore(), nil, nil, time.Now())
	_, _, err := svc.Claim(context.Background(), uuid.New(), uuid.New(), uuid.Nil)
	if !errors.Is(err, ErrPartnerNotFound) {
		t.Fatalf("err = %v, want ErrPartnerNotFound", err)
	}
}

func TestClaimRejectsMissingOffer(t *testing.T) {
	partner := activePartner(10)
	svc := newTestService(newFakeVoucherStore(), partner, nil, time.Now())
	_, _, err := svc.Claim(context.Background(), uuid.New(), partner.ID, uuid.Nil)
	if !errors.Is(err, ErrNoActiveOffer) {
		t.Fatalf("err = %v, want ErrNoActiveOffer", err)
	}
}

func detailFixture(code string, partnerID uuid.UUID, expiresAt time.Time) *models.VoucherDetail {
	return &models.VoucherDetail{
		Voucher: models.Voucher{
			ID: uuid.New(), Code: code, UserID: uuid.New(), PartnerID: partnerID,
			OfferID: uuid.New(), Status: models.VoucherIssued, ExpiresAt: expiresAt,
		},
		PartnerName: "Cafe Mika",
		OfferTitle:  "Free espresso",
		UserEmail:   "holder@example.com",
	}
}

func TestLookupNotFound(t *testing.T) {
	svc := newTestService(newFakeVoucherStore(), nil, nil, time.Now())
	_, err := svc.Lookup(context.Background(), "BLK-MISSING")
	if !errors.Is(err, ErrVoucherNotFound) {
		t.Fatalf("err = %v, want ErrVoucherNotFound", err)
	}
}

func TestLookupAppliesServerSideExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	vs := newFakeVoucherStore()
	d := detailFixture("BLK-OLD123", uuid.New(), now.Add(-time.Minute))
	vs.byCode[d.Code] = d
	svc := newTestService(vs, nil, nil, now)

	got, err := svc.Lookup(context.Background(), "BLK-OLD123")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Status != models.VoucherExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
}

func TestLookupNormalizesURLInput(t *testing.T) {
	now := time.Now()
	vs := newFakeVoucherStore()
	d := detailFixture("BLK-7F3K2A", uuid.New(), now.Add(time.Hour))
	vs.byCode[d.Code] = d
	svc := newTestService(vs, nil, nil, now)

	got, err := svc.Lookup(context.Background(), "https://balkly.example/v/blk-7f3k2a")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Code != "BLK-7F3K2A" {
		t.Fatalf("code = %q", got.Code)
	}
}

func TestStaffLookupWrongPartner(t *testing.T) {
	now := time.Now()
	vs := newFakeVoucherStore()
	d := detailFixture("BLK-AAA111", uuid.New(), now.Add(time.Hour))
	vs.byCode[d.Code] = d
	svc := newTestService(vs, nil, nil, now)

	otherPartner := uuid.New()
	_, err := svc.StaffLookup(context.Background(), d.Code, Actor{UserID: uuid.New(), PartnerID: &otherPartner})
	if !errors.Is(err, ErrWrongPartner) {
		t.Fatalf("err = %v, want ErrWrongPartner", err)
	}
}

func TestStaffLookupAdminBypassesPartnerCheck(t *testing.T) {
	now := time.Now()
	vs := newFakeVoucherStore()
	d := detailFixture("BLK-AAA111", uuid.New(), now.Add(time.Hour))
	vs.byCode[d.Code] = d
	svc := newTestService(vs, nil, nil, now)

	got, err := svc.StaffLookup(context.Background(), d.Code, Actor{UserID: uuid.New(), Admin: true})
	if err != nil {
		t.Fatalf("StaffLookup: %v", err)
	}
	if got.UserEmail != "holder@example.com" {
		t.Fatal("admin lookup missing holder detail")
	}
}

func TestRedeemComputesCommission(t *testing.T) {
	now := time.Now()
	partner := activePartner(12.5)
	vs := newFakeVoucherStore()
	d := detailFixture("BLK-PAY123", partner.ID, now.Add(time.Hour))
	vs.byCode[d.Code] = d
	svc := newTestService(vs, partner, nil, now)

	amount := 39.99
	receipt, err := svc.Redeem(context.Background(), d.Code,
		Actor{UserID: uuid.New(), PartnerID: &partner.ID},
		RedeemRequest{Amount: &amount})
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	// 39.99 * 12.5% = 4.99875 -> 5.00
	if receipt.Commission != 5.00 {
		t.Fatalf("commission = %v, want 5.00", receipt.Commission)
	}
	if len(vs.redeemed) != 1 {
		t.Fatalf("redeemed %d times, want 1", len(vs.redeemed))
	}
	if vs.redeemed[0].CommissionRate != 12.5 {
		t.Fatalf("rate snapshot = %v, want 12.5", vs.redeemed[0].CommissionRate)
	}
}

func TestRedeemWithoutAmountHasZeroCommission(t *testing.T) {
	now := time.Now()
	partner := activePartner(20)
	vs := newFakeVoucherStore()
	d := detailFixture("BLK-FREE01", partner.ID, now.Add(time.Hour))
	vs.byCode[d.Code] = d
	svc := newTestService(vs, partner, nil, now)

	receipt, err := svc.Redeem(context.Background(), d.Code,
		Actor{UserID: uuid.New(), PartnerID: &partner.ID}, RedeemRequest{})
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if receipt.Commission != 0 {
		t.Fatalf("commission = %v, want 0", receipt.Commission)
	}
}

func TestRedeemSurfacesStoreRefusal(t *testing.T) {
	now := time.Now()
	partner := activePartner(10)
	vs := newFakeVoucherStore()
	d := detailFixture("BLK-GONE01", partner.ID, now.Add(time.Hour))
	vs.byCode[d.Code] = d
	vs.redeemErr = ErrVoucherRedeemed
	svc := newTestService(vs, partner, nil, now)

	_, err := svc.Redeem(context.Background(), d.Code,
		Actor{UserID: uuid.New(), PartnerID: &partner.ID}, RedeemRequest{})
	if !errors.Is(err, ErrVoucherRedeemed) {
		t.Fatalf("err = %v, want ErrVoucherRedeemed", err)
	}
}

func TestRedeemWrongPartnerRefusedBeforeStore(t *testing.T) {
	now := time.Now()
	partner := activePartner(10)
	vs := newFakeVoucherStore()
	d := detailFixture("BLK-XYZ789", partner.ID, now.Add(time.Hour))
	vs.byCode[d.Code] = d
	svc := newTestService(vs, partner, nil, now)

	other := uuid.New()
	_, err := svc.Redeem(context.Background(), d.Code,
		Actor{UserID: uuid.New(), PartnerID: &other}, RedeemRequest{})
	if !errors.Is(err, ErrWrongPartner) {
		t.Fatalf("err = %v, want ErrWrongPartner", err)
	}
	if len(vs.redeemed) != 0 {
		t.Fatal("store redeem was reached for a wrong-partner actor")
	}
}

func TestVoucherURL(t *testing.T) {
	svc := newTestService(newFakeVoucherStore(), nil, nil, time.Now())
	if got := svc.VoucherURL("BLK-7F3K2A"); got != "https://balkly.example/v/BLK-7F3K2A" {
		t.Fatalf("VoucherURL = %q", got)
	}
}
