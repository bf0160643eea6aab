package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyoak/score/internal/config"
	"github.com/greyoak/score/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeFixtures(t *testing.T, dir string) {
	writeFile(t, dir, "sector_map.csv",
		"ticker,sector_id,sector_group,exchange\n"+
			"INFY,IT_SERVICES,it,NSE\n"+
			"HDFCBANK,PRIVATE_BANKS,banks,NSE\n"+
			"ORPHAN, ,,NSE\n")

	writeFile(t, dir, "prices.csv",
		"ticker,date,open,high,low,close,volume,dma20,dma50,dma200,rsi14,atr14,hi20,ret_21d,ret_63d,ret_126d,sigma20,sigma60,avg_volume_20,median_traded_value_cr\n"+
			"INFY,2024-06-27,1480,1495,1470,1490,1000000,1485,1460,1400,55,22,1500,0.03,0.08,0.15,0.015,0.018,950000,30\n"+
			"INFY,2024-06-28,1490,1515,1488,1510,1200000,1492,1465,1405,58,23,1505,0.04,0.09,0.16,0.015,0.018,980000,32\n"+
			"HDFCBANK,2024-06-28,1600,1625,1595,1620,2000000,1610,1590,1550,60,25,1630,0.02,0.05,0.10,0.012,0.014,,\n"+
			"NOSECTOR,2024-06-28,100,105,99,104,500000,,,,,,,,,,,,,\n")

	writeFile(t, dir, "fundamentals.csv",
		"ticker,quarter_end,roe_3y,roce_3y,eps_cagr_3y,sales_cagr_3y,pe,ev_ebitda,opm_stdev_12q,roa_3y,gnpa_pct,pcr_pct,nim_3y,market_cap_cr\n"+
			"INFY,2024-03-31,0.28,0.32,0.12,0.14,25,18,0.02,,,,,620000\n"+
			"INFY,2023-12-31,0.27,0.31,0.11,0.13,26,19,0.02,,,,,600000\n"+
			"HDFCBANK,2024-03-31,0.16,,,,,,,0.018,1.2,75,3.8,1200000\n")

	writeFile(t, dir, "ownership.csv",
		"ticker,quarter_end,promoter_hold_pct,promoter_pledge_frac,fii_dii_delta_pp,fii_holding_pct\n"+
			"INFY,2024-03-31,0.13,0,0.5,0.33\n"+
			"HDFCBANK,2024-03-31,0,0,-0.2,0.47\n")
}

func newLoader() *Loader {
	return NewLoader(config.Default(), zerolog.Nop())
}

func TestLoadDirJoinsLatestRows(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)

	snaps, err := newLoader().LoadDir(dir)
	require.NoError(t, err)

	// NOSECTOR and ORPHAN are dropped; output is sorted by ticker.
	require.Len(t, snaps, 2)
	assert.Equal(t, "HDFCBANK", snaps[0].Ticker)
	assert.Equal(t, "INFY", snaps[1].Ticker)

	infy := snaps[1]
	assert.Equal(t, "it", infy.SectorGroup)
	assert.Equal(t, "2024-06-28", infy.Date.Format("2006-01-02"))
	assert.Equal(t, 1510.0, infy.Price.Close.Value)
	assert.Equal(t, 1, infy.Price.VolumeBars)

	// Latest quarter wins.
	assert.Equal(t, domain.FundamentalsStandard, infy.Fund.Kind)
	assert.Equal(t, 0.28, infy.Fund.Standard.ROE3y.Value)
	assert.Equal(t, 620000.0, infy.Fund.MarketCapCr.Value)
	assert.Equal(t, 0.13, infy.Own.PromoterHoldPct.Value)
}

func TestBankingSectorsGetBankingFundamentals(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)

	snaps, err := newLoader().LoadDir(dir)
	require.NoError(t, err)

	hdfc := snaps[0]
	assert.Equal(t, domain.FundamentalsBanking, hdfc.Fund.Kind)
	assert.Equal(t, 0.018, hdfc.Fund.Banking.ROA3y.Value)
	assert.Equal(t, 0.16, hdfc.Fund.Banking.ROE3y.Value)
	assert.Equal(t, 1.2, hdfc.Fund.Banking.GNPAPct.Value)
	assert.False(t, hdfc.Fund.Standard.ROE3y.Valid)
	// Missing optional cells come back absent, not zero.
	assert.False(t, hdfc.Price.MedianTradedValueCr.Valid)
}

func TestMissingOptionalFilesAreTolerated(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "fundamentals.csv")))
	require.NoError(t, os.Remove(filepath.Join(dir, "ownership.csv")))

	snaps, err := newLoader().LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.False(t, snaps[1].Fund.MarketCapCr.Valid)
	assert.False(t, snaps[1].Own.PromoterHoldPct.Valid)
}

func TestMissingRequiredFileFails(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "prices.csv")))

	_, err := newLoader().LoadDir(dir)
	assert.Error(t, err)
}

func TestMissingRequiredColumnsFail(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	writeFile(t, dir, "prices.csv", "ticker,open\nINFY,100\n")

	_, err := newLoader().LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
}

func TestMetricParsing(t *testing.T) {
	assert.False(t, metric("").Valid)
	assert.False(t, metric("NA").Valid)
	assert.False(t, metric("NaN").Valid)
	assert.False(t, metric("abc").Valid)
	assert.Equal(t, 1.5, metric("1.5").Value)
	assert.Equal(t, -0.03, metric("-0.03").Value)
}
