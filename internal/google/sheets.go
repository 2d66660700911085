// Package google mirrors active appointments into a Google Sheet the
// clinic front desk works from.
package google

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"dentsched/internal/model"
)

var sheetHeader = []any{
	"Appointment ID", "Provider", "Patient ID", "Branch", "Date", "Time",
	"Duration (min)", "Status", "Created", "Updated",
}

// AppointmentSource supplies the rows to sync.
type AppointmentSource interface {
	ListAppointmentsByDateRange(ctx context.Context, from, to string) ([]model.Appointment, error)
	ListProviders(ctx context.Context, roles []string) ([]model.Provider, error)
}

// SheetsService pushes the appointment book to a spreadsheet.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        *zerolog.Logger

	mu       sync.Mutex
	rowCache map[string]int
}

// NewSheetsService authenticates with a service-account JSON key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read sheets credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheets credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	if sheetName == "" {
		sheetName = "Appointments"
	}
	return &SheetsService{
		service:       svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
		rowCache:      make(map[string]int),
	}, nil
}

// Run syncs on a fixed interval until the context is cancelled.
func (s *SheetsService) Run(ctx context.Context, interval time.Duration, source AppointmentSource) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.syncOnce(ctx, source); err != nil {
				s.logger.Error().Err(err).Msg("sheets sync failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// syncOnce mirrors the next 90 days of appointments.
func (s *SheetsService) syncOnce(ctx context.Context, source AppointmentSource) error {
	now := time.Now()
	from := now.Format("2006-01-02")
	to := now.AddDate(0, 0, 90).Format("2006-01-02")

	appointments, err := source.ListAppointmentsByDateRange(ctx, from, to)
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	providers, err := source.ListProviders(ctx, nil)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	names := make(map[string]string, len(providers))
	for _, p := range providers {
		names[p.ID] = p.FullName()
	}

	return s.SyncAppointments(ctx, appointments, names)
}

// SyncAppointments rewrites the sheet with the active appointments.
func (s *SheetsService) SyncAppointments(ctx context.Context, appointments []model.Appointment, providerNames map[string]string) error {
	active := s.filterActiveAppointments(appointments)

	values := make([][]any, 0, len(active)+1)
	values = append(values, sheetHeader)

	s.ClearCache()
	for i, a := range active {
		name := providerNames[a.ProviderID]
		if name == "" {
			name = a.ProviderID
		}
		values = append(values, appointmentRowValues(&a, name))
		// header occupies row 1
		s.setCachedRow(a.ID, i+2)
	}

	clearRange := fmt.Sprintf("%s!A:J", s.sheetName)
	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	body := &sheets.ValueRange{Values: values}
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, fmt.Sprintf("%s!A1", s.sheetName), body).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write sheet: %w", err)
	}

	s.logger.Info().Int("rows", len(active)).Msg("sheets sync completed")
	return nil
}

// filterActiveAppointments drops cancelled and rejected entries.
func (s *SheetsService) filterActiveAppointments(appointments []model.Appointment) []model.Appointment {
	active := make([]model.Appointment, 0, len(appointments))
	for _, a := range appointments {
		if a.Active() {
			active = append(active, a)
		}
	}
	return active
}

func appointmentRowValues(a *model.Appointment, providerName string) []any {
	return []any{
		a.ID,
		providerName,
		a.PatientID,
		a.Branch,
		a.Date,
		a.Time,
		a.Duration,
		a.Status,
		a.CreatedAt.Format("2006-01-02 15:04:05"),
		a.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

func (s *SheetsService) setCachedRow(id string, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) getCachedRow(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) deleteCachedRow(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache resets the appointment-to-row cache.
func (s *SheetsService) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowCache = make(map[string]int)
}
