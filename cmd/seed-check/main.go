// Command seed-check validates coupon seed files before they are deployed.
//
// Every entry is validated as the API would validate it, codes duplicated
// within a file are reported, and codes defined in more than one file are
// found in two passes: pass 1 validates each file concurrently and keeps
// only a bloom filter of its codes, pass 2 streams every file again and
// keeps the codes that hit another file's filter. A code is reported when
// at least two files keep it.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
	"github.com/xenking/coupon-engine/internal/seed"
)

const bloomFPR = 0.001

// fileCheck is what pass 1 keeps of a file: its counts and its bloom
// filter. Entries are dropped once the filter is built.
type fileCheck struct {
	path       string
	coupons    int
	invalid    int
	duplicates int
	filter     *bloom.BloomFilter
}

type report struct {
	invalid        int
	duplicates     int
	crossFileCodes map[string][]string // code -> files
}

func (r report) ok() bool {
	return r.invalid == 0 && r.duplicates == 0 && len(r.crossFileCodes) == 0
}

func main() {
	var tz string
	flag.StringVar(&tz, "timezone", "Local", "IANA time zone the seed dates are in")
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("usage: seed-check [-timezone Zone] file.yaml [file.yaml.gz ...]")
		os.Exit(2)
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Error("invalid timezone", slog.String("timezone", tz), slog.String("error", err.Error()))
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	rep, err := run(ctx, files, loc)
	if err != nil {
		slog.Error("seed check failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !rep.ok() {
		slog.Error("seed files have problems",
			slog.Int("invalid", rep.invalid),
			slog.Int("duplicates", rep.duplicates),
			slog.Int("cross_file", len(rep.crossFileCodes)),
		)
		os.Exit(1)
	}
	slog.Info("seed files ok", slog.Int("files", len(files)))
}

func run(ctx context.Context, paths []string, loc *time.Location) (report, error) {
	rep := report{crossFileCodes: map[string][]string{}}

	slog.Info("pass 1: validating and building bloom filters", slog.Int("files", len(paths)))
	checks, err := checkFiles(ctx, paths, loc)
	if err != nil {
		return rep, errors.Wrap(err, "pass 1")
	}
	for _, c := range checks {
		rep.invalid += c.invalid
		rep.duplicates += c.duplicates
	}

	if len(checks) < 2 {
		return rep, nil
	}

	slog.Info("pass 2: finding codes shared between files")
	shared, err := findCrossFileCodes(ctx, checks)
	if err != nil {
		return rep, errors.Wrap(err, "pass 2")
	}
	for code, owners := range shared {
		slog.Warn("code defined in several files", slog.String("code", code), slog.Any("files", owners))
		rep.crossFileCodes[code] = owners
	}
	return rep, nil
}

// checkFiles validates every file concurrently and builds one bloom filter
// per file from its distinct codes.
func checkFiles(ctx context.Context, paths []string, loc *time.Location) ([]*fileCheck, error) {
	checks := make([]*fileCheck, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := seed.LoadFile(path)
			if err != nil {
				return err
			}
			checks[i] = checkFile(path, entries, loc)
			slog.Info("checked",
				slog.String("file", path),
				slog.Int("coupons", checks[i].coupons),
				slog.Uint64("filter_bits", uint64(checks[i].filter.Cap())),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return checks, nil
}

// checkFile validates entries, counts codes repeated within the file and
// fills the file's bloom filter.
func checkFile(path string, entries []coupon.CouponData, loc *time.Location) *fileCheck {
	c := &fileCheck{
		path:    path,
		coupons: len(entries),
		filter:  bloom.NewWithEstimates(uint(max(len(entries), 1)), bloomFPR),
	}
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if err := e.Validate(loc); err != nil {
			c.invalid++
			slog.Warn("invalid coupon",
				slog.String("file", path),
				slog.Int("index", i),
				slog.String("code", e.Code),
				slog.String("error", err.Error()),
			)
		}
		if _, dup := seen[e.Code]; dup {
			c.duplicates++
			slog.Warn("duplicate code", slog.String("file", path), slog.String("code", e.Code))
			continue
		}
		seen[e.Code] = struct{}{}
		c.filter.AddString(e.Code)
	}
	return c
}

// findCrossFileCodes returns codes present in two or more files, mapped to
// the sorted files defining them. Each file is streamed again and only its
// codes that hit another file's filter are kept. A code shared for real is
// kept by every file defining it, so a bloom false positive has one owner
// and is dropped.
func findCrossFileCodes(ctx context.Context, checks []*fileCheck) (map[string][]string, error) {
	candidates := make([][]string, len(checks))

	g, ctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := seed.LoadFile(c.path)
			if err != nil {
				return err
			}
			candidates[i] = fileCandidates(i, entries, checks)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	owners := make(map[string][]string)
	for i, codes := range candidates {
		for _, code := range codes {
			owners[code] = append(owners[code], checks[i].path)
		}
	}
	for code, files := range owners {
		slices.Sort(files)
		files = slices.Compact(files)
		if len(files) < 2 {
			delete(owners, code)
			continue
		}
		owners[code] = files
	}
	return owners, nil
}

// fileCandidates returns the codes of file self that some other file's
// filter may contain.
func fileCandidates(self int, entries []coupon.CouponData, checks []*fileCheck) []string {
	var out []string
	for _, e := range entries {
		for j, other := range checks {
			if j != self && other.filter.TestString(e.Code) {
				out = append(out, e.Code)
				break
			}
		}
	}
	return out
}
