package service

import (
	"context"
	"fmt"

	"github.com/civitest/civitest-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// SummaryStore is the scored read side. Satisfied by
// repository.SummaryRepository.
type SummaryStore interface {
	ListFinishedByUser(ctx context.Context, userID int) ([]model.FinishedSession, error)
	ListResultsByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.ExamResultRow, int64, error)
}

// ExamReader exposes the catalog lookup needed to label exports. Satisfied
// by repository.ExamRepository.
type ExamReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// ResultsService aggregates already-scored sessions. It never recomputes
// a score; everything derives from what finalize persisted.
type ResultsService struct {
	store       SummaryStore
	exams       ExamReader
	passPercent float64
	log         zerolog.Logger
}

// NewResultsService creates a new ResultsService. passPercent is the
// pass/fail threshold applied to score percentages.
func NewResultsService(store SummaryStore, exams ExamReader, passPercent float64, log zerolog.Logger) *ResultsService {
	return &ResultsService{
		store:       store,
		exams:       exams,
		passPercent: passPercent,
		log:         log.With().Str("component", "results_service").Logger(),
	}
}

// UserSummary aggregates a user's finished sessions: count, average,
// highest, lowest and pass rate against the configured threshold.
func (s *ResultsService) UserSummary(ctx context.Context, userID int) (*model.UserSummary, []model.FinishedSession, error) {
	rows, err := s.store.ListFinishedByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list finished sessions: %w", err)
	}
	if rows == nil {
		rows = []model.FinishedSession{}
	}
	summary := buildSummary(userID, rows, s.passPercent)
	return summary, rows, nil
}

// buildSummary is the pure aggregation over finished sessions.
func buildSummary(userID int, rows []model.FinishedSession, passPercent float64) *model.UserSummary {
	summary := &model.UserSummary{
		UserID:      userID,
		TakenCount:  len(rows),
		PassPercent: passPercent,
	}
	if len(rows) == 0 {
		return summary
	}

	var sum float64
	highest := rows[0].Percentage()
	lowest := highest
	for _, r := range rows {
		pct := r.Percentage()
		sum += pct
		if pct > highest {
			highest = pct
		}
		if pct < lowest {
			lowest = pct
		}
		if pct >= passPercent {
			summary.PassCount++
		}
	}

	summary.AveragePercent = sum / float64(len(rows))
	summary.HighestPercent = highest
	summary.LowestPercent = lowest
	summary.PassRate = float64(summary.PassCount) / float64(len(rows)) * 100
	return summary
}

// ExamResults lists every attempt at one exam for admins, paginated.
func (s *ResultsService) ExamResults(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.ExamResultRow, int64, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, 0, fmt.Errorf("%w: exam %s", ErrNotFound, examID)
	}

	results, total, err := s.store.ListResultsByExam(ctx, examID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list exam results: %w", err)
	}
	if results == nil {
		results = []model.ExamResultRow{}
	}
	return results, total, nil
}

// exportPageSize bounds each repository read while streaming an export.
const exportPageSize = 500

// ExportExamResults renders every attempt at one exam into an XLSX
// workbook.
func (s *ResultsService) ExportExamResults(ctx context.Context, examID uuid.UUID) (*excelize.File, string, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: exam %s", ErrNotFound, examID)
	}

	f := excelize.NewFile()
	sheet := "Results"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", fmt.Errorf("drop default sheet: %w", err)
	}

	headers := []string{"Session ID", "User ID", "Status", "Total Score", "Started At", "Finished At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, "", fmt.Errorf("write header: %w", err)
		}
	}

	rowNum := 2
	for page := 1; ; page++ {
		rows, _, err := s.store.ListResultsByExam(ctx, examID, page, exportPageSize)
		if err != nil {
			return nil, "", fmt.Errorf("list exam results: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			values := []interface{}{
				row.SessionID.String(),
				row.UserID,
				string(row.Status),
				"",
				row.StartedAt.Format("2006-01-02 15:04:05"),
				"",
			}
			if row.TotalScore != nil {
				values[3] = *row.TotalScore
			}
			if row.FinishedAt != nil {
				values[5] = row.FinishedAt.Format("2006-01-02 15:04:05")
			}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, "", fmt.Errorf("write row: %w", err)
				}
			}
			rowNum++
		}
		if len(rows) < exportPageSize {
			break
		}
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("exam_title", exam.Title).
		Int("rows", rowNum-2).
		Msg("results exported")

	filename := fmt.Sprintf("results-%s.xlsx", examID.String())
	return f, filename, nil
}
