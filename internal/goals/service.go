// Package goals enforces board-participant authorization over the storage
// layer. Every caller is identified by account id; reads require any
// participant role on the relevant board, writes require owner or writer.
// The same rules apply no matter which surface invokes the service.
package goals

import (
	"errors"
	"fmt"

	"github.com/Pudxe/todolist/internal/db"
)

// ErrPermissionDenied means the account participates in the board but its
// role does not allow the operation, or does not participate at all when a
// role is required.
var ErrPermissionDenied = errors.New("permission denied")

type Service struct {
	db *db.DB
}

func NewService(database *db.DB) *Service {
	return &Service{db: database}
}

// requireParticipant returns the account's role on the board, or
// ErrPermissionDenied when the account is not a participant. Non-participants
// get the same denial as under-privileged ones so board membership is not
// probeable.
func (s *Service) requireParticipant(boardID, accountID string) (db.Role, error) {
	role, err := s.db.ParticipantRole(boardID, accountID)
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrPermissionDenied
	}
	if err != nil {
		return "", err
	}
	return role, nil
}

// requireWriter checks the account can mutate board content (owner or writer).
func (s *Service) requireWriter(boardID, accountID string) error {
	role, err := s.requireParticipant(boardID, accountID)
	if err != nil {
		return err
	}
	if role != db.RoleOwner && role != db.RoleWriter {
		return ErrPermissionDenied
	}
	return nil
}

// ListBoards returns the boards the account participates in.
func (s *Service) ListBoards(accountID string) ([]*db.Board, error) {
	return s.db.ListBoardsForAccount(accountID)
}

// CreateBoard creates a board owned by the account.
func (s *Service) CreateBoard(accountID, title string) (*db.Board, error) {
	return s.db.CreateBoard(title, accountID)
}

// DeleteBoard soft-deletes a board. Owner only.
func (s *Service) DeleteBoard(accountID, boardID string) error {
	role, err := s.requireParticipant(boardID, accountID)
	if err != nil {
		return err
	}
	if role != db.RoleOwner {
		return ErrPermissionDenied
	}
	return s.db.DeleteBoard(boardID)
}

// ListCategories returns the non-deleted categories of a board the account
// participates in.
func (s *Service) ListCategories(accountID, boardID string) ([]*db.Category, error) {
	if _, err := s.requireParticipant(boardID, accountID); err != nil {
		return nil, err
	}
	return s.db.ListCategoriesByBoard(boardID)
}

// CreateCategory creates a category on a board. Owner or writer only.
func (s *Service) CreateCategory(accountID, boardID, title string) (*db.Category, error) {
	if err := s.requireWriter(boardID, accountID); err != nil {
		return nil, err
	}
	return s.db.CreateCategory(boardID, accountID, title)
}

// DeleteCategory soft-deletes a category. Owner or writer only.
func (s *Service) DeleteCategory(accountID, categoryID string) error {
	cat, err := s.db.GetCategory(categoryID)
	if err != nil {
		return err
	}
	if err := s.requireWriter(cat.BoardID, accountID); err != nil {
		return err
	}
	return s.db.DeleteCategory(categoryID)
}

// ListGoals returns the account's visible goals across all of its boards:
// everything non-archived in non-deleted categories.
func (s *Service) ListGoals(accountID string) ([]*db.Goal, error) {
	return s.db.ListGoalsForAccount(accountID)
}

// GetGoal retrieves a goal the account is allowed to see.
func (s *Service) GetGoal(accountID, goalID string) (*db.Goal, error) {
	goal, err := s.db.GetGoal(goalID)
	if err != nil {
		return nil, err
	}
	if _, err := s.goalBoardRole(goal, accountID); err != nil {
		return nil, err
	}
	return goal, nil
}

// CreateGoal creates a goal in a category. Owner or writer on the category's
// board only.
func (s *Service) CreateGoal(accountID, categoryID, title string) (*db.Goal, error) {
	cat, err := s.db.GetCategory(categoryID)
	if err != nil {
		return nil, err
	}
	if cat.IsDeleted {
		return nil, db.ErrNotFound
	}
	if err := s.requireWriter(cat.BoardID, accountID); err != nil {
		return nil, err
	}
	return s.db.CreateGoal(db.CreateGoalInput{
		CategoryID: categoryID,
		AuthorID:   accountID,
		Title:      title,
	})
}

// UpdateGoalStatus moves a goal to a new status. Owner or writer only.
func (s *Service) UpdateGoalStatus(accountID, goalID string, status db.GoalStatus) (*db.Goal, error) {
	if !db.ValidGoalStatus(status) {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	goal, err := s.db.GetGoal(goalID)
	if err != nil {
		return nil, err
	}
	if err := s.requireGoalWriter(goal, accountID); err != nil {
		return nil, err
	}
	return s.db.UpdateGoal(goalID, db.UpdateGoalInput{Status: &status})
}

// ArchiveGoal archives a goal instead of deleting it, so its history stays
// queryable. Owner or writer only.
func (s *Service) ArchiveGoal(accountID, goalID string) error {
	goal, err := s.db.GetGoal(goalID)
	if err != nil {
		return err
	}
	if err := s.requireGoalWriter(goal, accountID); err != nil {
		return err
	}
	return s.db.ArchiveGoal(goalID)
}

// CreateComment adds a comment to a goal. Owner or writer only, matching the
// other write operations.
func (s *Service) CreateComment(accountID, goalID, text string) (*db.GoalComment, error) {
	goal, err := s.db.GetGoal(goalID)
	if err != nil {
		return nil, err
	}
	if err := s.requireGoalWriter(goal, accountID); err != nil {
		return nil, err
	}
	return s.db.CreateComment(goalID, accountID, text)
}

// ListComments returns a goal's comments for any participant.
func (s *Service) ListComments(accountID, goalID string) ([]*db.GoalComment, error) {
	goal, err := s.db.GetGoal(goalID)
	if err != nil {
		return nil, err
	}
	if _, err := s.goalBoardRole(goal, accountID); err != nil {
		return nil, err
	}
	return s.db.ListCommentsByGoal(goalID)
}

// AddParticipant invites an account onto a board. Owner only.
func (s *Service) AddParticipant(accountID, boardID, inviteeID string, role db.Role) (*db.BoardParticipant, error) {
	if !db.ValidRole(role) {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	r, err := s.requireParticipant(boardID, accountID)
	if err != nil {
		return nil, err
	}
	if r != db.RoleOwner {
		return nil, ErrPermissionDenied
	}
	return s.db.AddParticipant(boardID, inviteeID, role)
}

func (s *Service) goalBoardRole(goal *db.Goal, accountID string) (db.Role, error) {
	cat, err := s.db.GetCategory(goal.CategoryID)
	if err != nil {
		return "", err
	}
	return s.requireParticipant(cat.BoardID, accountID)
}

func (s *Service) requireGoalWriter(goal *db.Goal, accountID string) error {
	role, err := s.goalBoardRole(goal, accountID)
	if err != nil {
		return err
	}
	if role != db.RoleOwner && role != db.RoleWriter {
		return ErrPermissionDenied
	}
	return nil
}
