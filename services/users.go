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

type UserService struct {
	DB        *gorm.DB
	Referrals *ReferralSettlement
	log       *zap.Logger
}

func NewUserService(db *gorm.DB, referrals *ReferralSettlement, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{DB: db, Referrals: referrals, log: log.Named("users")}
}

// Registration is a new user as seen by the profile service.
type Registration struct {
	ID             string
	Username       string
	Email          string
	Verified       bool
	ReferralCode   string
	ReferredByCode string
	// ReferredByID is used by the sync worker, which already knows the referrer's id.
	ReferredByID string
	CreatedAt    time.Time
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Register creates the user and, when referred, its pending referral in one
// transaction. ReferredBy cannot change after this.
func (s *UserService) Register(ctx context.Context, in Registration) (*models.User, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Username = strings.TrimSpace(in.Username)
	if in.ID == "" || in.Username == "" {
		return nil, validationError("id and username are required")
	}
	in.ReferralCode = strings.TrimSpace(in.ReferralCode)
	generateCode := in.ReferralCode == ""

	user := &models.User{
		ID:                in.ID,
		Username:          in.Username,
		Email:             strings.TrimSpace(in.Email),
		Verified:          in.Verified,
		SearchKey:         models.SearchKey(in.Username, in.Email),
		BaseBalance:       decimal.Zero,
		AdditionalBalance: decimal.Zero,
	}
	if !in.CreatedAt.IsZero() {
		user.CreatedAt = in.CreatedAt
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.User{}).Where("id = ?", in.ID).Count(&exists).Error; err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if exists > 0 {
			return invalidState("user", in.ID, "already registered")
		}
		code, err := s.claimReferralCode(tx, in.ReferralCode, generateCode)
		if err != nil {
			return err
		}
		user.ReferralCode = code

		referrer, codeUsed, err := s.resolveReferrer(tx, in)
		if err != nil {
			return err
		}
		if referrer != nil {
			if referrer.ID == in.ID {
				return validationError("a user cannot refer themselves")
			}
			user.ReferredBy = &referrer.ID
		}

		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if referrer != nil {
			return s.Referrals.EnsurePending(tx, user.ID, referrer.ID, codeUsed)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.Bool("referred", user.ReferredBy != nil))
	return user, nil
}

func (s *UserService) resolveReferrer(tx *gorm.DB, in Registration) (*models.User, string, error) {
	var referrer models.User
	switch {
	case in.ReferredByCode != "":
		err := tx.Where("referral_code = ?", strings.TrimSpace(in.ReferredByCode)).First(&referrer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", validationError("unknown referral code %q", in.ReferredByCode)
		}
		if err != nil {
			return nil, "", fmt.Errorf("lookup referral code: %w", err)
		}
		return &referrer, referrer.ReferralCode, nil
	case in.ReferredByID != "":
		err := tx.Where("id = ?", in.ReferredByID).First(&referrer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// referredBy is fixed at creation, so the referee waits for its referrer.
			return nil, "", notFound("referrer", in.ReferredByID)
		}
		if err != nil {
			return nil, "", fmt.Errorf("lookup referrer: %w", err)
		}
		return &referrer, referrer.ReferralCode, nil
	}
	return nil, "", nil
}

// claimReferralCode returns code when no other user holds it. A generated code
// is retried a few times before giving up.
func (s *UserService) claimReferralCode(tx *gorm.DB, code string, generate bool) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		if generate {
			code = newReferralCode()
		}
		var taken int64
		if err := tx.Model(&models.User{}).Where("referral_code = ?", code).Count(&taken).Error; err != nil {
			return "", fmt.Errorf("check referral code: %w", err)
		}
		if taken == 0 {
			return code, nil
		}
		if !generate {
			return "", validationError("referral code %q is already in use", code)
		}
	}
	return "", fmt.Errorf("could not generate a free referral code")
}

// UpsertProfile refreshes profile columns of an existing user. Balances,
// referral links and version are never touched here.
func (s *UserService) UpsertProfile(ctx context.Context, in Registration) (created bool, err error) {
	var exists int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", in.ID).Count(&exists).Error; err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	if exists == 0 {
		_, err := s.Register(ctx, in)
		if errors.Is(err, ErrInvalidState) {
			return false, nil
		}
		return err == nil, err
	}

	err = s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", in.ID).
		Updates(map[string]interface{}{
			"username":   in.Username,
			"email":      in.Email,
			"verified":   in.Verified,
			"search_key": models.SearchKey(in.Username, in.Email),
		}).Error
	if err != nil {
		return false, fmt.Errorf("update profile %s: %w", in.ID, err)
	}
	return false, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return &user, nil
}

type UserFilter struct {
	Search   string
	Verified *bool
	Page     int
	Limit    int
}

func (s *UserService) List(ctx context.Context, f UserFilter) ([]models.User, Pagination, error) {
	page, limit := normalizePage(f.Page, f.Limit)
	filter := func(q *gorm.DB) *gorm.DB {
		if term := searchTerm(f.Search); term != "" {
			q = q.Where("search_key LIKE ?", term)
		}
		if f.Verified != nil {
			q = q.Where("verified = ?", *f.Verified)
		}
		return q
	}

	db := s.DB.WithContext(ctx)
	var total int64
	if err := db.Model(&models.User{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("count users: %w", err)
	}
	var users []models.User
	if err := db.Scopes(filter).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, Pagination{}, fmt.Errorf("list users: %w", err)
	}
	return users, newPagination(page, limit, total), nil
}
