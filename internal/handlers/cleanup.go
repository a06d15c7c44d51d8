package handlers

import (
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

const cleanupInterval = time.Hour

// FileCleanupService removes locally cached artifacts older than maxAge.
// Removed files are rendered again on the next download.
type FileCleanupService struct {
	dir    string
	maxAge time.Duration
	log    *logrus.Logger
	ticker *time.Ticker
	done   chan struct{}
	now    func() time.Time
}

func NewFileCleanupService(dir string, maxAge time.Duration, log *logrus.Logger) *FileCleanupService {
	return &FileCleanupService{
		dir:    dir,
		maxAge: maxAge,
		log:    log,
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

func (fcs *FileCleanupService) Start() {
	fcs.ticker = time.NewTicker(cleanupInterval)
	go func() {
		for {
			select {
			case <-fcs.done:
				return
			case <-fcs.ticker.C:
				fcs.Sweep()
			}
		}
	}()
	fcs.log.WithFields(logrus.Fields{"dir": fcs.dir, "max_age": fcs.maxAge.String()}).Info("file cleanup service started")
}

func (fcs *FileCleanupService) Stop() {
	if fcs.ticker != nil {
		fcs.ticker.Stop()
	}
	close(fcs.done)
	fcs.log.Info("file cleanup service stopped")
}

// Sweep deletes expired files and reports how many were removed.
func (fcs *FileCleanupService) Sweep() int {
	if _, err := os.Stat(fcs.dir); os.IsNotExist(err) {
		return 0
	}

	removed := 0
	err := filepath.Walk(fcs.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || fcs.now().Sub(info.ModTime()) <= fcs.maxAge {
			return nil
		}

		fcs.log.WithField("path", path).Debug("removing expired artifact")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		fcs.log.WithError(err).WithField("dir", fcs.dir).Error("artifact cleanup failed")
	}
	return removed
}
