package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards-settlement/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LuckyDrawService struct {
	DB      *gorm.DB
	Reviews *ReviewGateway
	log     *zap.Logger
}

func NewLuckyDrawService(db *gorm.DB, reviews *ReviewGateway, log *zap.Logger) *LuckyDrawService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LuckyDrawService{DB: db, Reviews: reviews, log: log.Named("draws")}
}

type DrawInput struct {
	Title           *string
	Description     *string
	Prize           *string
	EntryFee        *decimal.Decimal
	MaxParticipants *int
	StartDate       *time.Time
	EndDate         *time.Time
}

func (s *LuckyDrawService) Create(ctx context.Context, in DrawInput) (*models.LuckyDraw, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, validationError("title is required")
	}
	if in.StartDate == nil || in.EndDate == nil {
		return nil, validationError("startDate and endDate are required")
	}
	if !in.EndDate.After(*in.StartDate) {
		return nil, validationError("endDate must be after startDate")
	}
	draw := &models.LuckyDraw{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(*in.Title),
		EntryFee:  decimal.Zero,
		StartDate: in.StartDate.UTC(),
		EndDate:   in.EndDate.UTC(),
		Status:    models.DrawScheduled,
	}
	if in.Description != nil {
		draw.Description = *in.Description
	}
	if in.Prize != nil {
		draw.Prize = *in.Prize
	}
	if in.EntryFee != nil {
		if in.EntryFee.IsNegative() {
			return nil, validationError("entryFee cannot be negative")
		}
		draw.EntryFee = *in.EntryFee
	}
	if in.MaxParticipants != nil {
		if *in.MaxParticipants < 0 {
			return nil, validationError("maxParticipants cannot be negative")
		}
		draw.MaxParticipants = *in.MaxParticipants
	}
	if !draw.StartDate.After(time.Now().UTC()) {
		draw.Status = models.DrawActive
	}

	if err := s.DB.WithContext(ctx).Create(draw).Error; err != nil {
		return nil, fmt.Errorf("create draw: %w", err)
	}
	return draw, nil
}

func (s *LuckyDrawService) Update(ctx context.Context, id string, in DrawInput) (*models.LuckyDraw, error) {
	draw, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if draw.Status == models.DrawCompleted {
		return nil, invalidState("lucky_draw", id, "draw is completed")
	}
	fields := map[string]interface{}{}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, validationError("title cannot be empty")
		}
		fields["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Prize != nil {
		fields["prize"] = *in.Prize
	}
	if in.EntryFee != nil {
		if in.EntryFee.IsNegative() {
			return nil, validationError("entryFee cannot be negative")
		}
		fields["entry_fee"] = *in.EntryFee
	}
	if in.MaxParticipants != nil {
		if *in.MaxParticipants < 0 {
			return nil, validationError("maxParticipants cannot be negative")
		}
		fields["max_participants"] = *in.MaxParticipants
	}
	start, end := draw.StartDate, draw.EndDate
	if in.StartDate != nil {
		start = in.StartDate.UTC()
		fields["start_date"] = start
	}
	if in.EndDate != nil {
		end = in.EndDate.UTC()
		fields["end_date"] = end
	}
	if !end.After(start) {
		return nil, validationError("endDate must be after startDate")
	}
	if len(fields) > 0 {
		if err := s.DB.WithContext(ctx).Model(draw).Updates(fields).Error; err != nil {
			return nil, fmt.Errorf("update draw %s: %w", id, err)
		}
	}
	return s.Get(ctx, id)
}

// Toggle flips active and paused, and starts a scheduled draw early.
func (s *LuckyDrawService) Toggle(ctx context.Context, id string) (*models.LuckyDraw, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var draw models.LuckyDraw
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&draw).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("lucky_draw", id)
		}
		if err != nil {
			return fmt.Errorf("load draw %s: %w", id, err)
		}

		var next models.DrawStatus
		switch draw.Status {
		case models.DrawActive:
			next = models.DrawPaused
		case models.DrawPaused, models.DrawScheduled:
			next = models.DrawActive
		default:
			return invalidState("lucky_draw", id, "draw is %s", draw.Status)
		}
		return tx.Model(&models.LuckyDraw{}).
			Where("id = ? AND status = ?", id, draw.Status).
			Update("status", next).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *LuckyDrawService) Get(ctx context.Context, id string) (*models.LuckyDraw, error) {
	var draw models.LuckyDraw
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&draw).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("lucky_draw", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load draw %s: %w", id, err)
	}
	n, err := s.entryCount(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	draw.CurrentParticipants = n
	return &draw, nil
}

func (s *LuckyDrawService) entryCount(db *gorm.DB, drawID string) (int64, error) {
	var n int64
	err := db.Model(&models.Participation{}).
		Where("draw_id = ? AND status <> ?", drawID, models.ReviewRejected).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count participations: %w", err)
	}
	return n, nil
}

func (s *LuckyDrawService) List(ctx context.Context, status string) ([]models.LuckyDraw, error) {
	db := s.DB.WithContext(ctx)
	q := db.Order("start_date DESC")
	if status != "" && status != "all" {
		q = q.Where("status = ?", status)
	}
	var draws []models.LuckyDraw
	if err := q.Find(&draws).Error; err != nil {
		return nil, fmt.Errorf("list draws: %w", err)
	}

	var counts []struct {
		DrawID string
		N      int64
	}
	if err := db.Model(&models.Participation{}).
		Select("draw_id, COUNT(*) AS n").
		Where("status <> ?", models.ReviewRejected).
		Group("draw_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count participations: %w", err)
	}
	byDraw := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDraw[c.DrawID] = c.N
	}
	for i := range draws {
		draws[i].CurrentParticipants = byDraw[draws[i].ID]
	}
	return draws, nil
}

// Enter adds a pending participation to an active draw that still has room.
func (s *LuckyDrawService) Enter(ctx context.Context, drawID, userID, proof string) (*models.Participation, error) {
	var entry *models.Participation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var draw models.LuckyDraw
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", drawID).First(&draw).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("lucky_draw", drawID)
		}
		if err != nil {
			return fmt.Errorf("load draw %s: %w", drawID, err)
		}
		if draw.Status != models.DrawActive {
			return invalidState("lucky_draw", drawID, "draw is %s", draw.Status)
		}

		var users int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if users == 0 {
			return notFound("user", userID)
		}

		n, err := s.entryCount(tx, drawID)
		if err != nil {
			return err
		}
		if draw.MaxParticipants > 0 && n >= int64(draw.MaxParticipants) {
			return invalidState("lucky_draw", drawID, "draw is full")
		}
		// Tickets are numbered across all entries so a rejected ticket is never reissued.
		var issued int64
		if err := tx.Model(&models.Participation{}).Where("draw_id = ?", drawID).Count(&issued).Error; err != nil {
			return fmt.Errorf("count tickets: %w", err)
		}

		entry = &models.Participation{
			ID:             uuid.NewString(),
			DrawID:         drawID,
			UserID:         userID,
			TicketNumber:   fmt.Sprintf("T%06d", issued+1),
			Status:         models.ReviewPending,
			ProofReference: proof,
			SubmittedAt:    time.Now().UTC(),
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *LuckyDrawService) Participations(ctx context.Context, status, drawID string) ([]models.Participation, error) {
	q := s.DB.WithContext(ctx).Preload("Draw").Preload("User").Order("submitted_at DESC")
	if status != "" && status != "all" {
		q = q.Where("status = ?", status)
	}
	if drawID != "" {
		q = q.Where("draw_id = ?", drawID)
	}
	var entries []models.Participation
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	return entries, nil
}

func (s *LuckyDrawService) ReviewParticipation(ctx context.Context, id string, decision models.ReviewStatus, notes, reviewer string) (*models.Participation, error) {
	if err := s.Reviews.Review(ctx, id, decision, notes, reviewer); err != nil {
		return nil, err
	}
	var entry models.Participation
	if err := s.DB.WithContext(ctx).Preload("Draw").Preload("User").Where("id = ?", id).First(&entry).Error; err != nil {
		return nil, fmt.Errorf("reload participation %s: %w", id, err)
	}
	return &entry, nil
}

// ActivateDue starts scheduled draws whose start date has passed.
func (s *LuckyDrawService) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.LuckyDraw{}).
		Where("status = ? AND start_date <= ?", models.DrawScheduled, now.UTC()).
		Update("status", models.DrawActive)
	return res.RowsAffected, res.Error
}

// CompleteDue closes running or paused draws whose end date has passed.
func (s *LuckyDrawService) CompleteDue(ctx context.Context, now time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.LuckyDraw{}).
		Where("status IN ? AND end_date <= ?", []models.DrawStatus{models.DrawActive, models.DrawPaused}, now.UTC()).
		Update("status", models.DrawCompleted)
	return res.RowsAffected, res.Error
}
