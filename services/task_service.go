package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards-settlement/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TaskService struct {
	DB      *gorm.DB
	Reviews *ReviewGateway
	log     *zap.Logger
}

func NewTaskService(db *gorm.DB, reviews *ReviewGateway, log *zap.Logger) *TaskService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskService{DB: db, Reviews: reviews, log: log.Named("tasks")}
}

// TaskInput carries create and update fields; nil means unchanged on update.
type TaskInput struct {
	Title        *string
	Description  *string
	Reward       *decimal.Decimal
	Category     *string
	TimeEstimate *string
	Requirements []string
	URL          *string
	Status       *models.TaskStatus
}

func validTaskStatus(s models.TaskStatus) bool {
	return s == models.TaskActive || s == models.TaskInactive
}

func (s *TaskService) uniqueSlug(tx *gorm.DB, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "task"
	}
	candidate := base
	for i := 2; ; i++ {
		var n int64
		if err := tx.Unscoped().Model(&models.Task{}).Where("slug = ?", candidate).Count(&n).Error; err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *TaskService) Create(ctx context.Context, in TaskInput) (*models.Task, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, validationError("title is required")
	}
	if in.Reward == nil {
		return nil, validationError("reward is required")
	}
	if in.Reward.IsNegative() {
		return nil, validationError("reward cannot be negative")
	}
	task := &models.Task{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(*in.Title),
		Reward:       *in.Reward,
		Requirements: in.Requirements,
		Status:       models.TaskActive,
	}
	if task.Requirements == nil {
		task.Requirements = []string{}
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Category != nil {
		task.Category = *in.Category
	}
	if in.TimeEstimate != nil {
		task.TimeEstimate = *in.TimeEstimate
	}
	if in.URL != nil {
		task.URL = *in.URL
	}
	if in.Status != nil {
		if !validTaskStatus(*in.Status) {
			return nil, validationError("status must be active or inactive")
		}
		task.Status = *in.Status
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if task.Slug, err = s.uniqueSlug(tx, task.Title); err != nil {
			return err
		}
		return tx.Create(task).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("task created", zap.String("task_id", task.ID), zap.String("slug", task.Slug))
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, id string, in TaskInput) (*models.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
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
	if in.Reward != nil {
		if in.Reward.IsNegative() {
			return nil, validationError("reward cannot be negative")
		}
		fields["reward"] = *in.Reward
	}
	if in.Category != nil {
		fields["category"] = *in.Category
	}
	if in.TimeEstimate != nil {
		fields["time_estimate"] = *in.TimeEstimate
	}
	if in.URL != nil {
		fields["url"] = *in.URL
	}
	if in.Status != nil {
		if !validTaskStatus(*in.Status) {
			return nil, validationError("status must be active or inactive")
		}
		fields["status"] = *in.Status
	}

	db := s.DB.WithContext(ctx)
	if len(fields) > 0 {
		if err := db.Model(task).Updates(fields).Error; err != nil {
			return nil, fmt.Errorf("update task %s: %w", id, err)
		}
	}
	if in.Requirements != nil {
		if err := db.Model(task).Select("requirements").Updates(&models.Task{Requirements: in.Requirements}).Error; err != nil {
			return nil, fmt.Errorf("update task requirements %s: %w", id, err)
		}
	}
	return s.Get(ctx, id)
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("task", id)
	}
	return nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	return &task, nil
}

// List returns tasks with their approved-submission counts.
func (s *TaskService) List(ctx context.Context, status string) ([]models.Task, error) {
	db := s.DB.WithContext(ctx)
	q := db.Order("created_at DESC")
	if status != "" && status != "all" {
		q = q.Where("status = ?", status)
	}
	var tasks []models.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	var counts []struct {
		TaskID string
		N      int64
	}
	if err := db.Model(&models.TaskSubmission{}).
		Select("task_id, COUNT(*) AS n").
		Where("status = ?", models.ReviewApproved).
		Group("task_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("count completions: %w", err)
	}
	byTask := make(map[string]int64, len(counts))
	for _, c := range counts {
		byTask[c.TaskID] = c.N
	}
	for i := range tasks {
		tasks[i].Completions = byTask[tasks[i].ID]
	}
	return tasks, nil
}

// Submit records a pending submission for an active task.
func (s *TaskService) Submit(ctx context.Context, taskID, userID, proof string) (*models.TaskSubmission, error) {
	task, err := s.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != models.TaskActive {
		return nil, invalidState("task", taskID, "task is %s", task.Status)
	}
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if n == 0 {
		return nil, notFound("user", userID)
	}

	sub := &models.TaskSubmission{
		ID:             uuid.NewString(),
		TaskID:         taskID,
		UserID:         userID,
		Status:         models.ReviewPending,
		ProofReference: proof,
		SubmittedAt:    time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	return sub, nil
}

type SubmissionFilter struct {
	Status string
	Page   int
	Limit  int
}

func (s *TaskService) Submissions(ctx context.Context, f SubmissionFilter) ([]models.TaskSubmission, Pagination, error) {
	page, limit := normalizePage(f.Page, f.Limit)
	filter := func(q *gorm.DB) *gorm.DB {
		if f.Status != "" && f.Status != "all" {
			q = q.Where("status = ?", f.Status)
		}
		return q
	}

	db := s.DB.WithContext(ctx)
	var total int64
	if err := db.Model(&models.TaskSubmission{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("count submissions: %w", err)
	}
	var subs []models.TaskSubmission
	if err := db.Scopes(filter).
		Preload("Task").Preload("User").
		Order("submitted_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&subs).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("list submissions: %w", err)
	}
	return subs, newPagination(page, limit, total), nil
}

func (s *TaskService) ReviewSubmission(ctx context.Context, id string, decision models.ReviewStatus, notes, reviewer string) (*models.TaskSubmission, error) {
	if err := s.Reviews.Review(ctx, id, decision, notes, reviewer); err != nil {
		return nil, err
	}
	var sub models.TaskSubmission
	if err := s.DB.WithContext(ctx).Preload("Task").Preload("User").Where("id = ?", id).First(&sub).Error; err != nil {
		return nil, fmt.Errorf("reload submission %s: %w", id, err)
	}
	return &sub, nil
}
