// Package portal implements the Portal Strategy state machine from
// spec.md §4.C: BOOT, optional CONSENT, READY, then a per-parcel
// SEARCH/EXTRACT/LOCATE_DOC/DOWNLOAD_DOC/EMIT loop, DONE. The state
// machine itself lives here; portalA and portalB only supply
// selectors and the fingerprint-to-record mapping, matching the
// "closed variant set implementing a small shared interface" design
// note in spec.md §9.
//
// Grounded on the teacher's internal/engine state machine (explicit
// State enum, checked transitions) and internal/automation/browser.go
// (interaction call shape: Click/Fill/wait-for-stable-signal).
package portal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parcelwalk/parcelwalk/internal/docfetch"
	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
	"github.com/parcelwalk/parcelwalk/internal/namestub"
	"github.com/parcelwalk/parcelwalk/internal/pagedriver"
	"github.com/parcelwalk/parcelwalk/internal/ratelimit"
)

// Strategy is the small shared interface every portal variant
// implements (spec.md §9: "prepare(driver) -> consented,
// search_and_extract(driver, id) -> outcome").
type Strategy interface {
	// Kind identifies which jobtypes.PortalKind this strategy serves.
	Kind() jobtypes.PortalKind
	// Prepare drives CONSENT? on the page the caller has already
	// navigated to (BOOT), leaving the driver on the search page and
	// ready for READY probing.
	Prepare(ctx context.Context, d *pagedriver.Driver) error
	// ReadySelectors returns the prioritized search-input candidates
	// used by READY.
	ReadySelectors() []string
	// SearchAndExtract drives SEARCH, EXTRACT, and LOCATE_DOC for a
	// single parcel id, returning a fingerprint ready for download
	// resolution, or an outcome that needs no document.
	SearchAndExtract(ctx context.Context, d *pagedriver.Driver, parcelID string) (*Fingerprint, jobtypes.Outcome, error)
}

// Fingerprint is the raw field set an EXTRACT step pulls off the DOM,
// before document download and before becoming a jobtypes.ScrapedRecord.
type Fingerprint struct {
	OwnerName         string
	OwnerAddressRaw   string
	SitusAddressRaw   string
	LegalDescription  string
	AlternateID       string
	TransferDate      string
	TransferInstOrBK  string
	TransferDeedCode  string
	DocumentURL       string
}

// ToRecord converts a fingerprint into a scraped record. A successful
// extraction requires a legal description or an owner name (spec.md
// §4.C.3); otherwise the caller should treat it as not_found.
func (f *Fingerprint) ToRecord(parcelID string) *jobtypes.ScrapedRecord {
	return &jobtypes.ScrapedRecord{
		ParcelID:          parcelID,
		AlternateID:       f.AlternateID,
		OwnerName:         f.OwnerName,
		OwnerAddress:      ParseAddress(f.OwnerAddressRaw),
		SitusAddress:      ParseAddress(f.SitusAddressRaw),
		LegalDescription:  f.LegalDescription,
		Transfer: jobtypes.Transfer{
			Date:                 f.TransferDate,
			InstrumentOrBookPage: f.TransferInstOrBK,
			DeedCode:             f.TransferDeedCode,
		},
		DocumentURL: f.DocumentURL,
		Outcome:     jobtypes.OutcomeOK,
	}
}

// Options configures a Runner independent of portal kind.
type Options struct {
	ReadyTimeout         time.Duration
	SearchTimeout        time.Duration
	MaxConsecutiveFails  int
	ThinkEveryNParcels   int
	DownloadDir          string
}

// EmitFunc receives each completed record as the loop produces it, so
// the executor can update counts and flush the partial spreadsheet
// without the state machine knowing about either.
type EmitFunc func(rec *jobtypes.ScrapedRecord)

// CancelledFunc reports whether the owning job has been cancelled; it
// is polled at every checkpoint named in spec.md §5.
type CancelledFunc func() bool

// Runner drives a Strategy through the full state machine for one job.
type Runner struct {
	strategy  Strategy
	limiter   *ratelimit.Limiter
	fetcher   *docfetch.Fetcher
	opts      Options
	logger    *slog.Logger
}

// NewRunner builds a Runner bound to one strategy instance.
func NewRunner(strategy Strategy, limiter *ratelimit.Limiter, fetcher *docfetch.Fetcher, opts Options, logger *slog.Logger) *Runner {
	return &Runner{
		strategy: strategy,
		limiter:  limiter,
		fetcher:  fetcher,
		opts:     opts,
		logger:   logger.With("component", "portal_runner", "portal_kind", string(strategy.Kind())),
	}
}

// Run drives BOOT -> CONSENT? -> READY -> FOR-EACH -> DONE over ids,
// invoking emit for every record produced (including not_found/error
// rows) and cancelled() at every checkpoint spec.md §5 names.
func (r *Runner) Run(ctx context.Context, d *pagedriver.Driver, ids []string, emit EmitFunc, cancelled CancelledFunc) error {
	if err := r.strategy.Prepare(ctx, d); err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	if _, ok := d.FindFirst(r.strategy.ReadySelectors(), r.opts.ReadyTimeout); !ok {
		return &jobtypes.JobError{
			Kind: jobtypes.KindSearchInputMissing,
			Err:  fmt.Errorf("%w: title=%q url=%q", jobtypes.ErrSearchInputMissing, d.Title(), d.CurrentURL()),
		}
	}

	consecutiveFails := 0
	for _, id := range ids {
		if cancelled() {
			return jobtypes.ErrJobCancelled
		}

		if err := r.limiter.Wait(ctx, ratelimit.ClassPage); err != nil {
			return err
		}

		fp, outcome, err := r.strategy.SearchAndExtract(ctx, d, id)
		if err != nil {
			consecutiveFails++
			emit(jobtypes.NewErrorRecord(id, err))
			r.logger.Warn("parcel extract error", "parcel_id", id, "error", err)
			if consecutiveFails >= r.opts.MaxConsecutiveFails {
				return fmt.Errorf("%d consecutive failures: %w", consecutiveFails, err)
			}
			if err := r.limiter.AfterParcel(ctx); err != nil {
				return err
			}
			continue
		}
		consecutiveFails = 0

		switch outcome {
		case jobtypes.OutcomeNotFound:
			emit(jobtypes.NewNotFoundRecord(id))
		case jobtypes.OutcomeOK:
			rec := fp.ToRecord(id)
			r.downloadDocument(ctx, rec)
			emit(rec)
		default:
			emit(jobtypes.NewNotFoundRecord(id))
		}

		if err := r.limiter.AfterParcel(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) downloadDocument(ctx context.Context, rec *jobtypes.ScrapedRecord) {
	if rec.DocumentURL == "" {
		return
	}
	stub := namestub.FilenameStub(rec.OwnerName)
	filename := fmt.Sprintf("%s_%s.pdf", stub, rec.ParcelID)
	localPath, err := r.fetcher.Fetch(ctx, rec.DocumentURL, r.opts.DownloadDir, filename)
	if err != nil {
		rec.ErrorMsg = fmt.Sprintf("document_download_failed: %v", err)
		r.logger.Warn("document download failed", "parcel_id", rec.ParcelID, "url", rec.DocumentURL, "error", err)
		return
	}
	rec.DocumentLocalPath = localPath
}
