package store

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T, opt *Options) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.Nil(t, err)

	// every pooled connection would otherwise see its own empty in memory database
	sqlDB, err := db.DB()
	require.Nil(t, err)
	sqlDB.SetMaxOpenConns(1)

	s, err := New(db, opt)
	require.Nil(t, err)
	require.Nil(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr(v float64) *float64 { return &v }

func seed(t *testing.T, s *Store) {
	t.Helper()
	farms := []Farm{
		{ID: "f1", Address: "Ấp 3, xã An Thạnh, huyện Thạnh Phú, Bến Tre"},
		{ID: "f2", Address: "Tran De, Soc Trang"},
		{ID: "f3", Address: ""},
	}
	devices := []IoTDevice{
		{ID: "d1", FarmID: "f1"},
		{ID: "d2", FarmID: "f1"},
		{ID: "d3", FarmID: "f2"},
		{ID: "d4", FarmID: "f3"},
	}
	readings := []SensorReading{
		// 2024-03-01 local in Ben Tre across two devices
		{DeviceID: "d1", Timestamp: time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC), Salinity: ptr(1.0), Temperature: ptr(30)},
		{DeviceID: "d2", Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Salinity: ptr(2.0), Temperature: ptr(32)},
		// 17:30 UTC is already 2024-03-02 in UTC+7
		{DeviceID: "d1", Timestamp: time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC), Salinity: ptr(4.0)},
		{DeviceID: "d3", Timestamp: time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC), Salinity: ptr(0.6), Temperature: ptr(29)},
		// no resolvable province
		{DeviceID: "d4", Timestamp: time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC), Salinity: ptr(9)},
		// unknown device
		{DeviceID: "d9", Timestamp: time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC), Salinity: ptr(9)},
	}
	db := s.db.WithContext(context.Background())
	require.Nil(t, db.Create(&farms).Error)
	require.Nil(t, db.Create(&devices).Error)
	require.Nil(t, db.Create(&readings).Error)
}

func TestDailySalinity(t *testing.T) {
	testData := map[string]struct {
		pageSize int
	}{
		"single page":    {pageSize: DefaultPageSize},
		"multiple pages": {pageSize: 2},
		"exact pages":    {pageSize: 3},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, &Options{PageSize: td.pageSize})
			seed(t, s)

			records, err := s.DailySalinity(context.Background())
			require.Nil(t, err)
			require.Len(t, records, 3)

			day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

			assert.Equal(t, "Ben Tre", records[0].Province)
			assert.Equal(t, day(1), records[0].Date)
			assert.InDelta(t, 1.5, records[0].Salinity, 1e-9)
			assert.InDelta(t, 31.0, records[0].TempSensor, 1e-9)
			assert.True(t, math.IsNaN(records[0].RainLocal))
			assert.True(t, math.IsNaN(records[0].TempLocal))

			assert.Equal(t, "Ben Tre", records[1].Province)
			assert.Equal(t, day(2), records[1].Date)
			assert.InDelta(t, 4.0, records[1].Salinity, 1e-9)
			assert.True(t, math.IsNaN(records[1].TempSensor))

			assert.Equal(t, "Soc Trang", records[2].Province)
			assert.Equal(t, day(1), records[2].Date)
			assert.InDelta(t, 0.6, records[2].Salinity, 1e-9)
		})
	}
}

func TestDailySalinityEmpty(t *testing.T) {
	s := newTestStore(t, nil)
	_, err := s.DailySalinity(context.Background())
	assert.ErrorIs(t, err, ErrNoReadings)
	assert.Equal(t, errs.KindDataInsufficiency, errs.KindOf(err))

	db := s.db.WithContext(context.Background())
	require.Nil(t, db.Create(&SensorReading{DeviceID: "d1", Timestamp: time.Now(), Salinity: ptr(1)}).Error)
	_, err = s.DailySalinity(context.Background())
	assert.ErrorIs(t, err, ErrNoDevicesOrFarms)
}

func TestAssemblerFallback(t *testing.T) {
	s := newTestStore(t, nil)
	seed(t, s)

	dir := t.TempDir()
	weather := filepath.Join(dir, "weather.csv")
	require.Nil(t, os.WriteFile(weather, []byte("date,province,rain_mm,temp_c\n"+
		"2024-03-01,Ben Tre,1.5,\n"+
		"2024-03-02,Ben Tre,0.0,30.5\n"+
		"2024-03-01,Soc Trang,2.0,28.0\n"), 0o644))

	a, err := dataset.NewAssembler(nil, s)
	require.Nil(t, err)
	daily, err := a.BuildDaily(context.Background(), dataset.Sources{WeatherCSV: weather, AllowFallback: true})
	require.Nil(t, err)
	require.Len(t, daily, 3)

	// sensor temperature fills the missing weather temperature
	assert.InDelta(t, 31.0, daily[0].Temp, 1e-9)
	assert.InDelta(t, 30.5, daily[1].Temp, 1e-9)
}

func TestOptionsValidate(t *testing.T) {
	opt, err := (*Options)(nil).Validate()
	require.Nil(t, err)
	assert.Equal(t, DefaultPageSize, opt.PageSize)
	assert.NotNil(t, opt.Location)

	opt, err = (&Options{}).Validate()
	require.Nil(t, err)
	assert.Equal(t, DefaultPageSize, opt.PageSize)

	_, err = (&Options{PageSize: -1}).Validate()
	assert.ErrorIs(t, err, ErrNonPositivePageSize)

	_, err = Open("", nil)
	assert.ErrorIs(t, err, ErrNoDSN)
}
