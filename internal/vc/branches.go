package vc

import (
	"fmt"

	"flowvc/internal/model"
)

// BranchManager creates and looks up branches. Branch heads are never
// advanced here: the head only moves inside the commit transaction, so
// it can never diverge from the version ledger.
type BranchManager struct {
	store  Store
	logger Logger
}

func NewBranchManager(store Store, logger Logger) *BranchManager {
	return &BranchManager{store: store, logger: logger}
}

// Create creates a named branch in a project, forked from baseCommitID
// (empty for a root branch).
func (m *BranchManager) Create(projectID, userID, name, baseCommitID string) (*model.Branch, error) {
	branch, err := m.store.CreateBranch(projectID, userID, name, baseCommitID)
	if err != nil {
		return nil, fmt.Errorf("creating branch: %w", err)
	}

	m.logger.Info("branch created", "branch", branch.ID, "project", projectID, "name", name)
	return branch, nil
}

// GetOrCreateUserBranch returns the working branch for (project, user),
// creating it from the default branch's head on first use. A second
// call for the same pair returns the existing branch unchanged.
func (m *BranchManager) GetOrCreateUserBranch(projectID, userID string) (*model.Branch, error) {
	branch, err := m.store.GetOrCreateUserBranch(projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving user branch: %w", err)
	}
	return branch, nil
}

// Get returns a branch by ID, or ErrNotFound.
func (m *BranchManager) Get(branchID string) (*model.Branch, error) {
	branch, err := m.store.FindBranchByID(branchID)
	if err != nil {
		return nil, err
	}
	if branch == nil {
		return nil, fmt.Errorf("branch %s: %w", branchID, ErrNotFound)
	}
	return branch, nil
}

// List returns all branches of a project.
func (m *BranchManager) List(projectID string) ([]*model.Branch, error) {
	return m.store.ListBranches(projectID)
}
