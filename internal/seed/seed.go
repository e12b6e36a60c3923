// Package seed loads coupon definitions from YAML files into the catalog.
//
// A seed file has a single top-level key:
//
//	coupons:
//	  - code: SAVE10
//	    discountType: PERCENT
//	    discountValue: 10
//	    startDate: 2025-01-01T00:00:00
//	    endDate: 2025-12-31T23:59:59
//
// Files ending in .gz are gunzipped first.
package seed

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// Money values are kept as strings so they are parsed exactly.
type file struct {
	Coupons []entry `yaml:"coupons"`
}

type entry struct {
	Code              string       `yaml:"code"`
	Description       string       `yaml:"description"`
	DiscountType      string       `yaml:"discountType"`
	DiscountValue     string       `yaml:"discountValue"`
	MaxDiscountAmount *string      `yaml:"maxDiscountAmount"`
	StartDate         string       `yaml:"startDate"`
	EndDate           string       `yaml:"endDate"`
	UsageLimitPerUser *int         `yaml:"usageLimitPerUser"`
	Eligibility       *eligibility `yaml:"eligibility"`
}

type eligibility struct {
	AllowedUserTiers     []string `yaml:"allowedUserTiers"`
	MinLifetimeSpend     *string  `yaml:"minLifetimeSpend"`
	MinOrdersPlaced      *int     `yaml:"minOrdersPlaced"`
	FirstOrderOnly       *bool    `yaml:"firstOrderOnly"`
	AllowedCountries     []string `yaml:"allowedCountries"`
	MinCartValue         *string  `yaml:"minCartValue"`
	MinItemsCount        *int     `yaml:"minItemsCount"`
	ApplicableCategories []string `yaml:"applicableCategories"`
	ExcludedCategories   []string `yaml:"excludedCategories"`
}

// LoadFile reads the seed file at path.
func LoadFile(path string) ([]coupon.CouponData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	data, err := Decode(r)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return data, nil
}

// Decode parses a seed document. Unknown keys are rejected. Entries are
// converted but not validated; CouponData.Validate does that.
func Decode(r io.Reader) ([]coupon.CouponData, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc file
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "yaml")
	}

	out := make([]coupon.CouponData, 0, len(doc.Coupons))
	for i, e := range doc.Coupons {
		d, err := e.data()
		if err != nil {
			return nil, errors.Wrapf(err, "coupons[%d] (%s)", i, e.Code)
		}
		out = append(out, d)
	}
	return out, nil
}

func (e entry) data() (coupon.CouponData, error) {
	out := coupon.CouponData{
		Code:              e.Code,
		Description:       e.Description,
		DiscountType:      e.DiscountType,
		StartDate:         e.StartDate,
		EndDate:           e.EndDate,
		UsageLimitPerUser: e.UsageLimitPerUser,
	}

	var err error
	if e.DiscountValue != "" {
		if out.DiscountValue, err = decimal.NewFromString(e.DiscountValue); err != nil {
			return out, errors.Wrap(err, "discountValue")
		}
	}
	if out.MaxDiscountAmount, err = optDecimal(e.MaxDiscountAmount); err != nil {
		return out, errors.Wrap(err, "maxDiscountAmount")
	}

	if el := e.Eligibility; el != nil {
		out.Eligibility = &coupon.Eligibility{
			AllowedUserTiers:     el.AllowedUserTiers,
			MinOrdersPlaced:      el.MinOrdersPlaced,
			FirstOrderOnly:       el.FirstOrderOnly,
			AllowedCountries:     el.AllowedCountries,
			MinItemsCount:        el.MinItemsCount,
			ApplicableCategories: el.ApplicableCategories,
			ExcludedCategories:   el.ExcludedCategories,
		}
		if out.Eligibility.MinLifetimeSpend, err = optDecimal(el.MinLifetimeSpend); err != nil {
			return out, errors.Wrap(err, "eligibility.minLifetimeSpend")
		}
		if out.Eligibility.MinCartValue, err = optDecimal(el.MinCartValue); err != nil {
			return out, errors.Wrap(err, "eligibility.minCartValue")
		}
	}
	return out, nil
}

func optDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	v, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Creator adds a coupon to the catalog. *coupon.Service implements it.
type Creator interface {
	CreateCoupon(ctx context.Context, data coupon.CouponData) (*coupon.Coupon, error)
}

// Apply creates every entry in order and stops at the first failure.
// It returns how many coupons were created.
func Apply(ctx context.Context, c Creator, entries []coupon.CouponData) (int, error) {
	lg := zctx.From(ctx)
	for i, data := range entries {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := c.CreateCoupon(ctx, data); err != nil {
			return i, errors.Wrapf(err, "seed coupon %q", data.Code)
		}
	}
	lg.Info("Catalog seeded", zap.Int("coupons", len(entries)))
	return len(entries), nil
}
