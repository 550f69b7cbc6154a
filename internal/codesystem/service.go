// Package codesystem is the concrete backing for the CodeSystem entity
// (§3): locating the CodeSystem owning a branch path, and creating a
// CodeSystemVersion once an import observes a maxEffectiveTime (§4.5
// step 4).
package codesystem

import (
	"errors"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ontocore/ontocore-server/internal/apperr"
	"github.com/ontocore/ontocore-server/internal/branchstore"
	"github.com/ontocore/ontocore-server/internal/dbctx"
	"github.com/ontocore/ontocore-server/internal/domain"
	"github.com/ontocore/ontocore-server/internal/logger"
)

// Version is one released snapshot of a CodeSystem, created when an
// import observes a new maxEffectiveTime.
type Version struct {
	ID              string `gorm:"primaryKey;column:id"`
	CodeSystemID    string `gorm:"column:code_system_id;index"`
	EffectiveTime   int    `gorm:"column:effective_time"`
	InternalRelease bool   `gorm:"column:internal_release"`
}

func (Version) TableName() string { return "code_system_version" }

// Service implements both rf2.CodeSystems and integrity.CodeSystems
// against the code_system table (with created versions written to
// code_system_version), plus the owning-branch lookup the
// commit-time integrity hook needs (§4.6.5).
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewService(db *gorm.DB, baseLog *logger.Logger) *Service {
	return &Service{db: db, log: baseLog.With("component", "codesystem.Service")}
}

// ExistsOnBranch reports whether a CodeSystem row is registered at
// exactly branchPath (§4.5 preconditions).
func (s *Service) ExistsOnBranch(dbc dbctx.Context, branchPath string) (bool, error) {
	var count int64
	err := dbc.DB(s.db).Model(&domain.CodeSystem{}).Where("branch_path = ?", branchPath).Count(&count).Error
	if err != nil {
		return false, apperr.NewTransientStore(err)
	}
	return count > 0, nil
}

// CreateVersionIfFound creates a Version for the CodeSystem at
// branchPath, or does nothing if no CodeSystem is registered there
// (§4.5 step 4: "tell the CodeSystem layer to create a version").
func (s *Service) CreateVersionIfFound(dbc dbctx.Context, branchPath string, effectiveTime int, internalRelease bool) error {
	var cs domain.CodeSystem
	err := dbc.DB(s.db).Where("branch_path = ?", branchPath).First(&cs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperr.NewTransientStore(err)
	}
	version := &Version{
		ID:              cs.ID + "_" + strconv.Itoa(effectiveTime),
		CodeSystemID:    cs.ID,
		EffectiveTime:   effectiveTime,
		InternalRelease: internalRelease,
	}
	err = dbc.DB(s.db).Clauses(clause.OnConflict{DoNothing: true}).Create(version).Error
	if err != nil {
		return apperr.NewTransientStore(err)
	}
	return nil
}

// OwningBranch walks branchPath's ancestor chain, returning the
// nearest branch (at or above branchPath) carrying a CodeSystem row —
// the "owning code system" the commit-time integrity hook locates
// before deciding whether to run the incremental check or fix
// verification (§4.6.5).
func (s *Service) OwningBranch(dbc dbctx.Context, branchPath string) (string, bool, error) {
	for p := branchPath; ; p = branchstore.ParentPath(p) {
		var cs domain.CodeSystem
		err := dbc.DB(s.db).Where("branch_path = ?", p).First(&cs).Error
		if err == nil {
			return p, true, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, apperr.NewTransientStore(err)
		}
		if branchstore.IsRoot(p) {
			return "", false, nil
		}
	}
}
