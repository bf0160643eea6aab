// Package universe assembles scoring snapshots from the four input CSVs:
// prices.csv, fundamentals.csv, ownership.csv and sector_map.csv. Each file
// is keyed by ticker; the loader joins the latest row per ticker into one
// snapshot per instrument.
package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
)

const dateLayout = "2006-01-02"

// Loader reads and joins the input files.
type Loader struct {
	cfg *config.Config
	log zerolog.Logger
}

// NewLoader builds a loader; cfg decides which sectors are banking so
// fundamentals land in the right variant.
func NewLoader(cfg *config.Config, log zerolog.Logger) *Loader {
	return &Loader{cfg: cfg, log: log.With().Str("component", "universe").Logger()}
}

// LoadDir joins prices.csv, fundamentals.csv, ownership.csv and
// sector_map.csv from dir into one snapshot per ticker. Tickers without a
// sector mapping are skipped with a warning; fundamentals and ownership are
// optional per ticker, their metrics just come back absent.
func (l *Loader) LoadDir(dir string) ([]domain.Snapshot, error) {
	sectors, err := l.loadSectorMap(filepath.Join(dir, "sector_map.csv"))
	if err != nil {
		return nil, err
	}
	prices, err := l.loadPrices(filepath.Join(dir, "prices.csv"))
	if err != nil {
		return nil, err
	}
	funds, err := l.loadFundamentals(filepath.Join(dir, "fundamentals.csv"), sectors)
	if err != nil {
		return nil, err
	}
	owns, err := l.loadOwnership(filepath.Join(dir, "ownership.csv"))
	if err != nil {
		return nil, err
	}

	tickers := make([]string, 0, len(prices))
	for ticker := range prices {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	var snaps []domain.Snapshot
	for _, ticker := range tickers {
		sector, ok := sectors[ticker]
		if !ok {
			l.log.Warn().Str("ticker", ticker).Msg("no sector mapping, skipping")
			continue
		}
		price := prices[ticker]
		snaps = append(snaps, domain.Snapshot{
			Ticker:      ticker,
			Date:        price.date,
			SectorGroup: sector,
			Price:       price.record,
			Fund:        funds[ticker],
			Own:         owns[ticker],
		})
	}

	l.log.Info().
		Int("tickers", len(snaps)).
		Int("skipped", len(prices)-len(snaps)).
		Str("dir", dir).
		Msg("universe loaded")
	return snaps, nil
}

type pricedRow struct {
	date   time.Time
	record domain.PriceRecord
}

// loadPrices keeps the newest row per ticker and counts its volume history
// for the confirmation window.
func (l *Loader) loadPrices(path string) (map[string]pricedRow, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, "ticker", "date", "close", "volume"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	latest := make(map[string]pricedRow)
	volumeBars := make(map[string]int)
	for i, row := range rows {
		get := fieldGetter(header, row)
		ticker := strings.TrimSpace(get("ticker"))
		date, err := time.Parse(dateLayout, get("date"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad date %q", path, i+2, get("date"))
		}
		if get("volume") != "" {
			volumeBars[ticker]++
		}

		if cur, ok := latest[ticker]; ok && !date.After(cur.date) {
			continue
		}
		latest[ticker] = pricedRow{
			date: date,
			record: domain.PriceRecord{
				Close:               metric(get("close")),
				Volume:              metric(get("volume")),
				DMA20:               metric(get("dma20")),
				DMA50:               metric(get("dma50")),
				DMA200:              metric(get("dma200")),
				RSI14:               metric(get("rsi14")),
				ATR14:               metric(get("atr14")),
				Hi20:                metric(get("hi20")),
				Ret21d:              metric(get("ret_21d")),
				Ret63d:              metric(get("ret_63d")),
				Ret126d:             metric(get("ret_126d")),
				Sigma20:             metric(get("sigma20")),
				Sigma60:             metric(get("sigma60")),
				AvgVolume20:         metric(get("avg_volume_20")),
				MedianTradedValueCr: metric(get("median_traded_value_cr")),
			},
		}
	}

	// The latest row already counted itself; exclude it from the trailing
	// window the same way the average does.
	for ticker, row := range latest {
		bars := volumeBars[ticker]
		if row.record.Volume.Valid && bars > 0 {
			bars--
		}
		row.record.VolumeBars = bars
		latest[ticker] = row
	}
	return latest, nil
}

func (l *Loader) loadFundamentals(path string, sectors map[string]string) (map[string]domain.FundamentalsRecord, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Warn().Str("path", path).Msg("fundamentals file missing, metrics absent")
			return map[string]domain.FundamentalsRecord{}, nil
		}
		return nil, err
	}
	if err := requireColumns(header, "ticker", "quarter_end"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	funds := make(map[string]domain.FundamentalsRecord)
	quarters := make(map[string]time.Time)
	for i, row := range rows {
		get := fieldGetter(header, row)
		ticker := strings.TrimSpace(get("ticker"))
		qe, err := time.Parse(dateLayout, get("quarter_end"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad quarter_end %q", path, i+2, get("quarter_end"))
		}
		if prev, ok := quarters[ticker]; ok && !qe.After(prev) {
			continue
		}
		quarters[ticker] = qe

		rec := domain.FundamentalsRecord{
			Kind:        domain.FundamentalsStandard,
			MarketCapCr: metric(get("market_cap_cr")),
			ROCE3y:      metric(get("roce_3y")),
			OPMStdev12q: metric(get("opm_stdev_12q")),
			QuarterEnd:  domain.M(float64(qe.Unix())),
		}
		if l.cfg.IsBanking(sectors[ticker]) {
			rec.Kind = domain.FundamentalsBanking
			rec.Banking = domain.BankingFundamentals{
				ROA3y:   metric(get("roa_3y")),
				ROE3y:   metric(get("roe_3y")),
				GNPAPct: metric(get("gnpa_pct")),
				PCRPct:  metric(get("pcr_pct")),
				NIM3y:   metric(get("nim_3y")),
			}
		} else {
			rec.Standard = domain.StandardFundamentals{
				ROE3y:       metric(get("roe_3y")),
				SalesCAGR3y: metric(get("sales_cagr_3y")),
				EPSCAGR3y:   metric(get("eps_cagr_3y")),
				PE:          metric(get("pe")),
				EVEBITDA:    metric(get("ev_ebitda")),
			}
		}
		funds[ticker] = rec
	}
	return funds, nil
}

func (l *Loader) loadOwnership(path string) (map[string]domain.OwnershipRecord, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.log.Warn().Str("path", path).Msg("ownership file missing, metrics absent")
			return map[string]domain.OwnershipRecord{}, nil
		}
		return nil, err
	}
	if err := requireColumns(header, "ticker", "quarter_end"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	owns := make(map[string]domain.OwnershipRecord)
	quarters := make(map[string]time.Time)
	for i, row := range rows {
		get := fieldGetter(header, row)
		ticker := strings.TrimSpace(get("ticker"))
		qe, err := time.Parse(dateLayout, get("quarter_end"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad quarter_end %q", path, i+2, get("quarter_end"))
		}
		if prev, ok := quarters[ticker]; ok && !qe.After(prev) {
			continue
		}
		quarters[ticker] = qe

		owns[ticker] = domain.OwnershipRecord{
			PromoterHoldPct:    metric(get("promoter_hold_pct")),
			PromoterPledgeFrac: metric(get("promoter_pledge_frac")),
			FIIDIIDeltaPP:      metric(get("fii_dii_delta_pp")),
			FIIHoldingPct:      metric(get("fii_holding_pct")),
		}
	}
	return owns, nil
}

func (l *Loader) loadSectorMap(path string) (map[string]string, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(header, "ticker", "sector_group"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	sectors := make(map[string]string, len(rows))
	for _, row := range rows {
		get := fieldGetter(header, row)
		ticker := strings.TrimSpace(get("ticker"))
		group := strings.TrimSpace(get("sector_group"))
		if ticker == "" || group == "" {
			continue
		}
		sectors[ticker] = group
	}
	return sectors, nil
}

// readCSV returns all data rows plus a lower-cased header index.
func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	head, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	header := make(map[string]int, len(head))
	for i, name := range head {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

func requireColumns(header map[string]int, cols ...string) error {
	var missing []string
	for _, col := range cols {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

func fieldGetter(header map[string]int, row []string) func(string) string {
	return func(col string) string {
		idx, ok := header[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
}

// metric parses an optional numeric cell; empty, NA and NaN mean absent.
func metric(s string) domain.Metric {
	switch strings.ToLower(s) {
	case "", "na", "n/a", "nan", "null":
		return domain.Missing()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return domain.Missing()
	}
	return domain.M(v)
}
