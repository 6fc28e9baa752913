package errors

import (
	"errors"
	"sync"
	"time"
)

// Report is a handled error with the time it was seen.
type Report struct {
	Err       error
	FilePath  string
	Line      int
	Timestamp time.Time
}

// ErrorCollector collects errors passed through an ErrorHandler.
type ErrorCollector struct {
	reports []Report
	mutex   sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		reports: make([]Report, 0),
	}
}

// Add records err. Nil errors are ignored.
func (ec *ErrorCollector) Add(err error) {
	if err == nil {
		return
	}

	report := Report{Err: err, Timestamp: time.Now()}

	var te *TemplpackError
	if errors.As(err, &te) {
		report.FilePath = te.FilePath
		report.Line = te.Line
	}

	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.reports = append(ec.reports, report)
}

// Reports returns a copy of all collected reports in arrival order.
func (ec *ErrorCollector) Reports() []Report {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]Report, len(ec.reports))
	copy(result, ec.reports)

	return result
}

// ReportsByFile returns reports located in file.
func (ec *ErrorCollector) ReportsByFile(file string) []Report {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	var fileReports []Report
	for _, r := range ec.reports {
		if r.FilePath == file {
			fileReports = append(fileReports, r)
		}
	}

	return fileReports
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	return len(ec.reports) > 0
}
