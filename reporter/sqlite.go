package reporter

import (
	"context"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/netwarden/warden/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type batchRecord struct {
	ID           string    `gorm:"primaryKey"`
	Host         string
	Time         time.Time `gorm:"index"`
	AllowedFlows uint64
	BlockedFlows uint64
	AllowedBytes uint64
	BlockedBytes uint64
}

func (batchRecord) TableName() string { return "batches" }

type processRecord struct {
	ID           uint   `gorm:"primaryKey"`
	BatchID      string `gorm:"index"`
	ProcessID    string `gorm:"index"`
	Name         string
	Kind         string
	Count        uint64
	BytesBlocked uint64
	BytesAllowed uint64
	BlockedFlows uint64
	LastSeen     time.Time
	Bursty       bool
}

func (processRecord) TableName() string { return "process_stats" }

type observationRecord struct {
	ID         uint      `gorm:"primaryKey"`
	BatchID    string    `gorm:"index"`
	Time       time.Time `gorm:"index"`
	ProcessID  string    `gorm:"index"`
	Name       string
	Action     string
	Reason     string
	RemoteHost string
	RemotePort int
	BytesIn    uint64
	BytesOut   uint64
	Trusted    bool
}

func (observationRecord) TableName() string { return "observations" }

type sqliteSink struct {
	db *gorm.DB
}

// SQLiteSink stores batches in the sqlite database at path,
// creating the tables on first use.
func SQLiteSink(path string) (Sink, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	db.Exec("PRAGMA journal_mode=WAL")

	if err := db.AutoMigrate(&batchRecord{}, &processRecord{}, &observationRecord{}); err != nil {
		return nil, err
	}

	return &sqliteSink{db: db}, nil
}

func (s *sqliteSink) Name() string { return "sqlite" }

func (s *sqliteSink) Send(ctx context.Context, b *Batch) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batchRecord{
			ID:           b.ID,
			Host:         b.Host,
			Time:         b.Time,
			AllowedFlows: b.Totals.AllowedFlows,
			BlockedFlows: b.Totals.BlockedFlows,
			AllowedBytes: b.Totals.AllowedBytes,
			BlockedBytes: b.Totals.BlockedBytes,
		}).Error; err != nil {
			return err
		}

		if len(b.Processes) > 0 {
			if err := tx.CreateInBatches(processRecords(b.ID, b.Processes), 100).Error; err != nil {
				return err
			}
		}
		if len(b.Observations) > 0 {
			if err := tx.CreateInBatches(observationRecords(b.ID, b.Observations), 100).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *sqliteSink) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func processRecords(batch string, stats []observer.ProcessStats) []processRecord {
	records := make([]processRecord, 0, len(stats))
	for _, st := range stats {
		records = append(records, processRecord{
			BatchID:      batch,
			ProcessID:    st.Process.ID(),
			Name:         st.Process.Name,
			Kind:         string(st.Process.Kind),
			Count:        st.Count,
			BytesBlocked: st.BytesBlocked,
			BytesAllowed: st.BytesAllowed,
			BlockedFlows: st.BlockedFlows,
			LastSeen:     st.LastSeen,
			Bursty:       st.Bursty,
		})
	}
	return records
}

func observationRecords(batch string, obs []observer.Observation) []observationRecord {
	records := make([]observationRecord, 0, len(obs))
	for _, o := range obs {
		records = append(records, observationRecord{
			BatchID:    batch,
			Time:       o.Time,
			ProcessID:  o.Process.ID(),
			Name:       o.Process.Name,
			Action:     string(o.Action),
			Reason:     o.Reason,
			RemoteHost: o.RemoteHost,
			RemotePort: o.RemotePort,
			BytesIn:    o.BytesIn,
			BytesOut:   o.BytesOut,
			Trusted:    o.Trusted,
		})
	}
	return records
}
