package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aouyang1/go-salinity/province"
	"github.com/spf13/cast"
)

var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006/01/02",
}

// ParseDate parses a calendar date or timestamp and returns its calendar day
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Truncate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseFloat leniently parses a numeric cell. Empty or unparseable cells are NaN.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := cast.ToFloat64E(s)
	if err != nil {
		return math.NaN()
	}
	return v
}

// FormatFloat renders a value for csv output, NaN as an empty cell
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type table struct {
	header []string
	rows   [][]string
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s, %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &table{}, nil
		}
		return nil, fmt.Errorf("unable to read header of %s, %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read rows of %s, %w", path, err)
	}
	return &table{header: header, rows: rows}, nil
}

func (t *table) index(name string) int {
	for i, h := range t.header {
		if h == name {
			return i
		}
	}
	return -1
}

func (t *table) resolve(aliases []string) int {
	name, ok := ResolveColumn(t.header, aliases)
	if !ok {
		return -1
	}
	return t.index(name)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func floatCell(row []string, idx int) float64 {
	if idx < 0 {
		return math.NaN()
	}
	return ParseFloat(cell(row, idx))
}

// commonRow resolves the date and province of a row. Rows whose date or province cannot be
// resolved are skipped by the loaders.
func commonRow(row []string, dateIdx, provIdx int) (time.Time, string, bool) {
	date, err := ParseDate(cell(row, dateIdx))
	if err != nil {
		return time.Time{}, "", false
	}
	prov, ok := province.Normalize(cell(row, provIdx))
	if !ok {
		return time.Time{}, "", false
	}
	return date, prov, true
}

// WeatherRecord is one row of the weather feed
type WeatherRecord struct {
	Date     time.Time
	Province string
	Rain     float64
	Temp     float64
}

// LoadWeatherCSV reads the weather feed. Date, province, rainfall, and temperature columns are
// required under any of their aliases.
func LoadWeatherCSV(path string) ([]WeatherRecord, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	dateIdx := t.resolve(DateAliases)
	provIdx := t.resolve(ProvinceAliases)
	rainIdx := t.resolve(RainAliases)
	tempIdx := t.resolve(TempAliases)

	var missing []string
	if dateIdx < 0 {
		missing = append(missing, "date")
	}
	if provIdx < 0 {
		missing = append(missing, "province")
	}
	if rainIdx < 0 {
		missing = append(missing, "rain_mm")
	}
	if tempIdx < 0 {
		missing = append(missing, "temp_c")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("weather csv %s is missing %v, %w", path, missing, ErrMissingColumns)
	}

	records := make([]WeatherRecord, 0, len(t.rows))
	for _, row := range t.rows {
		date, prov, ok := commonRow(row, dateIdx, provIdx)
		if !ok {
			continue
		}
		records = append(records, WeatherRecord{
			Date:     date,
			Province: prov,
			Rain:     floatCell(row, rainIdx),
			Temp:     floatCell(row, tempIdx),
		})
	}
	return records, nil
}

// LocalTable is the optional combined feed. Salinity, rainfall, and temperature columns are
// each optional.
type LocalTable struct {
	HasSalinity bool
	HasRain     bool
	HasTemp     bool
	Records     []Observation
}

// LoadLocalCSV reads a combined local feed. Date and province columns are required.
func LoadLocalCSV(path string) (*LocalTable, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	dateIdx := t.resolve(DateAliases)
	provIdx := t.resolve(ProvinceAliases)

	var missing []string
	if dateIdx < 0 {
		missing = append(missing, "date")
	}
	if provIdx < 0 {
		missing = append(missing, "province")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("local csv %s is missing %v, %w", path, missing, ErrMissingColumns)
	}

	salIdx := t.resolve(SalinityAliases)
	rainIdx := t.resolve(RainAliases)
	tempIdx := t.resolve(TempAliases)

	lt := &LocalTable{
		HasSalinity: salIdx >= 0,
		HasRain:     rainIdx >= 0,
		HasTemp:     tempIdx >= 0,
		Records:     make([]Observation, 0, len(t.rows)),
	}
	for _, row := range t.rows {
		date, prov, ok := commonRow(row, dateIdx, provIdx)
		if !ok {
			continue
		}
		lt.Records = append(lt.Records, Observation{
			Date:     date,
			Province: prov,
			Salinity: floatCell(row, salIdx),
			Rain:     floatCell(row, rainIdx),
			Temp:     floatCell(row, tempIdx),
		})
	}
	return lt, nil
}

var preparedHeader = []string{"date", "province", "salinity_daily", "rain_mm", "temp_c"}

// WriteCSV writes the daily table in the prepared dataset layout
func WriteCSV(w io.Writer, d Daily) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(preparedHeader); err != nil {
		return err
	}
	for _, o := range d {
		rec := []string{
			o.Date.Format(DateLayout),
			o.Province,
			FormatFloat(o.Salinity),
			FormatFloat(o.Rain),
			FormatFloat(o.Temp),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile atomically replaces path with the daily table
func WriteCSVFile(path string, d Daily) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		return WriteCSV(w, d)
	})
}

// ReadCSV reads a previously prepared daily table. Incomplete rows are dropped.
func ReadCSV(path string) (Daily, error) {
	lt, err := LoadLocalCSV(path)
	if err != nil {
		return nil, err
	}
	if !lt.HasSalinity || !lt.HasRain || !lt.HasTemp {
		return nil, fmt.Errorf("prepared csv %s needs salinity, rain, and temperature, %w", path, ErrMissingColumns)
	}
	d := make(Daily, 0, len(lt.Records))
	for _, o := range lt.Records {
		if o.Complete() {
			d = append(d, o)
		}
	}
	d.Sort()
	return d, nil
}
