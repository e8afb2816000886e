// Package store reads sensor salinity from the farm monitoring database and reduces it to daily
// per province observations for the dataset assembler.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/aouyang1/go-salinity/dataset"
	"github.com/aouyang1/go-salinity/errs"
	"github.com/aouyang1/go-salinity/province"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultPageSize is the number of rows fetched per query
const DefaultPageSize = 1000

var (
	ErrNoDSN               = errs.New(errs.KindConfiguration, "no database dsn configured")
	ErrNonPositivePageSize = errs.New(errs.KindConfiguration, "page size must be positive")
	ErrNoReadings          = errs.New(errs.KindDataInsufficiency, "no sensor readings in store")
	ErrNoDevicesOrFarms    = errs.New(errs.KindDataInsufficiency, "no devices or farms in store")
)

// SensorReading is one measurement reported by a device
type SensorReading struct {
	ID          uint      `gorm:"primaryKey"`
	DeviceID    string    `gorm:"column:device_id;index"`
	Timestamp   time.Time `gorm:"column:timestamp"`
	Salinity    *float64  `gorm:"column:salinity"`
	Temperature *float64  `gorm:"column:temperature"`
}

func (SensorReading) TableName() string { return "sensor_readings" }

type IoTDevice struct {
	ID     string `gorm:"primaryKey"`
	FarmID string `gorm:"column:farm_id;index"`
}

func (IoTDevice) TableName() string { return "iot_devices" }

type Farm struct {
	ID      string `gorm:"primaryKey"`
	Address string `gorm:"column:address"`
}

func (Farm) TableName() string { return "farms" }

// Options configures the store
type Options struct {
	PageSize int

	// Location dates each reading by its local calendar day
	Location *time.Location
}

func NewDefaultOptions() *Options {
	return &Options{
		PageSize: DefaultPageSize,
		Location: dataset.DefaultLocation(),
	}
}

// Validate returns a defaulted copy of the options
func (o *Options) Validate() (*Options, error) {
	if o == nil {
		return NewDefaultOptions(), nil
	}
	opt := *o
	if opt.PageSize == 0 {
		opt.PageSize = DefaultPageSize
	}
	if opt.PageSize < 0 {
		return nil, ErrNonPositivePageSize
	}
	if opt.Location == nil {
		opt.Location = dataset.DefaultLocation()
	}
	return &opt, nil
}

// Store is a salinity source backed by the monitoring database
type Store struct {
	db  *gorm.DB
	opt *Options
}

// Open connects to a postgres database
func Open(dsn string, opt *Options) (*Store, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "unable to connect to store", err)
	}
	return New(db, opt)
}

// New wraps an open database handle
func New(db *gorm.DB, opt *Options) (*Store, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &Store{db: db, opt: opt}, nil
}

// Migrate creates the tables the store reads
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&SensorReading{}, &IoTDevice{}, &Farm{})
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// fetchAll pages through a table ordered by primary key
func fetchAll[T any](ctx context.Context, db *gorm.DB, columns []string, pageSize int) ([]T, error) {
	var rows []T
	for offset := 0; ; offset += pageSize {
		var batch []T
		err := db.WithContext(ctx).
			Model(new(T)).
			Select(columns).
			Order("id").
			Offset(offset).
			Limit(pageSize).
			Find(&batch).Error
		if err != nil {
			return nil, err
		}
		rows = append(rows, batch...)
		if len(batch) < pageSize {
			return rows, nil
		}
	}
}

type dayKey struct {
	province string
	date     time.Time
}

type dayAcc struct {
	salSum, tempSum float64
	salCnt, tempCnt int
}

// DailySalinity joins readings to devices and farms, resolves each farm address to a
// province, and averages salinity and sensor temperature per province and local day. Readings
// without a timestamp or resolvable province are dropped.
func (s *Store) DailySalinity(ctx context.Context) ([]dataset.SalinityRecord, error) {
	readings, err := fetchAll[SensorReading](ctx, s.db, []string{"id", "device_id", "timestamp", "salinity", "temperature"}, s.opt.PageSize)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch sensor readings, %w", err)
	}
	devices, err := fetchAll[IoTDevice](ctx, s.db, []string{"id", "farm_id"}, s.opt.PageSize)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch devices, %w", err)
	}
	farms, err := fetchAll[Farm](ctx, s.db, []string{"id", "address"}, s.opt.PageSize)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch farms, %w", err)
	}

	if len(readings) == 0 {
		return nil, ErrNoReadings
	}
	if len(devices) == 0 || len(farms) == 0 {
		return nil, ErrNoDevicesOrFarms
	}

	farmOf := make(map[string]string, len(devices))
	for _, d := range devices {
		farmOf[d.ID] = d.FarmID
	}
	provinceOf := make(map[string]string, len(farms))
	for _, f := range farms {
		if prov, ok := province.ExtractFromAddress(f.Address); ok {
			provinceOf[f.ID] = prov
		}
	}

	groups := make(map[dayKey]*dayAcc)
	var dropped int
	for _, r := range readings {
		prov, ok := provinceOf[farmOf[r.DeviceID]]
		if !ok || r.Timestamp.IsZero() {
			dropped++
			continue
		}
		k := dayKey{prov, dataset.Truncate(r.Timestamp.In(s.opt.Location))}
		acc, exists := groups[k]
		if !exists {
			acc = &dayAcc{}
			groups[k] = acc
		}
		if r.Salinity != nil && !math.IsNaN(*r.Salinity) {
			acc.salSum += *r.Salinity
			acc.salCnt++
		}
		if r.Temperature != nil && !math.IsNaN(*r.Temperature) {
			acc.tempSum += *r.Temperature
			acc.tempCnt++
		}
	}

	records := make([]dataset.SalinityRecord, 0, len(groups))
	for k, acc := range groups {
		rec := dataset.SalinityRecord{
			Date:       k.date,
			Province:   k.province,
			Salinity:   math.NaN(),
			RainLocal:  math.NaN(),
			TempLocal:  math.NaN(),
			TempSensor: math.NaN(),
		}
		if acc.salCnt > 0 {
			rec.Salinity = acc.salSum / float64(acc.salCnt)
		}
		if acc.tempCnt > 0 {
			rec.TempSensor = acc.tempSum / float64(acc.tempCnt)
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Province != records[j].Province {
			return records[i].Province < records[j].Province
		}
		return records[i].Date.Before(records[j].Date)
	})

	slog.Info("loaded store salinity",
		"readings", len(readings),
		"dropped", dropped,
		"province_days", len(records),
	)
	return records, nil
}
