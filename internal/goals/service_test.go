package goals

import (
	"errors"
	"testing"

	"github.com/Pudxe/todolist/internal/db"
)

type testEnv struct {
	db      *db.DB
	svc     *Service
	owner   *db.Account
	writer  *db.Account
	reader  *db.Account
	outside *db.Account
	board   *db.Board
	cat     *db.Category
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{db: database, svc: NewService(database)}

	mkAccount := func(name string) *db.Account {
		a, err := database.CreateAccount(name, "x")
		if err != nil {
			t.Fatalf("create account %s: %v", name, err)
		}
		return a
	}
	env.owner = mkAccount("owner")
	env.writer = mkAccount("writer")
	env.reader = mkAccount("reader")
	env.outside = mkAccount("outside")

	env.board, err = env.svc.CreateBoard(env.owner.ID, "Fitness")
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	if _, err := database.AddParticipant(env.board.ID, env.writer.ID, db.RoleWriter); err != nil {
		t.Fatalf("add writer: %v", err)
	}
	if _, err := database.AddParticipant(env.board.ID, env.reader.ID, db.RoleReader); err != nil {
		t.Fatalf("add reader: %v", err)
	}

	env.cat, err = env.svc.CreateCategory(env.owner.ID, env.board.ID, "Running")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	return env
}

func TestCreateBoardGrantsOwnership(t *testing.T) {
	env := newTestEnv(t)

	role, err := env.db.ParticipantRole(env.board.ID, env.owner.ID)
	if err != nil {
		t.Fatalf("participant role: %v", err)
	}
	if role != db.RoleOwner {
		t.Errorf("creator role = %q, want owner", role)
	}
}

func TestCreateGoalRoleMatrix(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name    string
		account *db.Account
		wantErr error
	}{
		{"owner", env.owner, nil},
		{"writer", env.writer, nil},
		{"reader", env.reader, ErrPermissionDenied},
		{"non-participant", env.outside, ErrPermissionDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.CreateGoal(tc.account.ID, env.cat.ID, "Run 5k")
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("CreateGoal as %s: err = %v, want %v", tc.name, err, tc.wantErr)
			}
		})
	}
}

func TestUpdateGoalStatusRoleMatrix(t *testing.T) {
	env := newTestEnv(t)

	goal, err := env.svc.CreateGoal(env.owner.ID, env.cat.ID, "Run 5k")
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}

	if _, err := env.svc.UpdateGoalStatus(env.reader.ID, goal.ID, db.GoalStatusDone); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("reader update: err = %v, want ErrPermissionDenied", err)
	}
	if _, err := env.svc.UpdateGoalStatus(env.outside.ID, goal.ID, db.GoalStatusDone); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("outsider update: err = %v, want ErrPermissionDenied", err)
	}

	updated, err := env.svc.UpdateGoalStatus(env.writer.ID, goal.ID, db.GoalStatusDone)
	if err != nil {
		t.Fatalf("writer update: %v", err)
	}
	if updated.Status != db.GoalStatusDone {
		t.Errorf("status = %q, want done", updated.Status)
	}
}

func TestUpdateGoalStatusRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)

	goal, err := env.svc.CreateGoal(env.owner.ID, env.cat.ID, "Run 5k")
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, err := env.svc.UpdateGoalStatus(env.owner.ID, goal.ID, "bogus"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestListCategoriesRequiresParticipation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.svc.ListCategories(env.outside.ID, env.board.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("outsider list: err = %v, want ErrPermissionDenied", err)
	}

	cats, err := env.svc.ListCategories(env.reader.ID, env.board.ID)
	if err != nil {
		t.Fatalf("reader list: %v", err)
	}
	if len(cats) != 1 {
		t.Errorf("got %d categories, want 1", len(cats))
	}
}

func TestListGoalsScopedToParticipation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.svc.CreateGoal(env.owner.ID, env.cat.ID, "Run 5k"); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	// The outsider gets its own board and goal; neither side sees the other's.
	otherBoard, err := env.svc.CreateBoard(env.outside.ID, "Private")
	if err != nil {
		t.Fatalf("create board: %v", err)
	}
	otherCat, err := env.svc.CreateCategory(env.outside.ID, otherBoard.ID, "Stuff")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if _, err := env.svc.CreateGoal(env.outside.ID, otherCat.ID, "Secret"); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	ownerGoals, err := env.svc.ListGoals(env.owner.ID)
	if err != nil {
		t.Fatalf("list owner goals: %v", err)
	}
	if len(ownerGoals) != 1 || ownerGoals[0].Title != "Run 5k" {
		t.Errorf("owner goals = %v, want [Run 5k]", ownerGoals)
	}

	outsideGoals, err := env.svc.ListGoals(env.outside.ID)
	if err != nil {
		t.Fatalf("list outsider goals: %v", err)
	}
	if len(outsideGoals) != 1 || outsideGoals[0].Title != "Secret" {
		t.Errorf("outsider goals = %v, want [Secret]", outsideGoals)
	}
}

func TestArchiveHidesGoalFromLists(t *testing.T) {
	env := newTestEnv(t)

	goal, err := env.svc.CreateGoal(env.owner.ID, env.cat.ID, "Run 5k")
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if err := env.svc.ArchiveGoal(env.owner.ID, goal.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}

	goals, err := env.svc.ListGoals(env.owner.ID)
	if err != nil {
		t.Fatalf("list goals: %v", err)
	}
	if len(goals) != 0 {
		t.Errorf("got %d goals after archive, want 0", len(goals))
	}

	// Archived, not deleted: the row is still readable by id.
	got, err := env.svc.GetGoal(env.owner.ID, goal.ID)
	if err != nil {
		t.Fatalf("get archived goal: %v", err)
	}
	if got.Status != db.GoalStatusArchived {
		t.Errorf("status = %q, want archived", got.Status)
	}
}

func TestDeletedCategoryHidesGoals(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.svc.CreateGoal(env.owner.ID, env.cat.ID, "Run 5k"); err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if err := env.svc.DeleteCategory(env.owner.ID, env.cat.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	goals, err := env.svc.ListGoals(env.owner.ID)
	if err != nil {
		t.Fatalf("list goals: %v", err)
	}
	if len(goals) != 0 {
		t.Errorf("got %d goals in deleted category, want 0", len(goals))
	}
}

func TestCommentsRequireWriterRole(t *testing.T) {
	env := newTestEnv(t)

	goal, err := env.svc.CreateGoal(env.owner.ID, env.cat.ID, "Run 5k")
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}

	if _, err := env.svc.CreateComment(env.reader.ID, goal.ID, "nice"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("reader comment: err = %v, want ErrPermissionDenied", err)
	}

	if _, err := env.svc.CreateComment(env.writer.ID, goal.ID, "halfway there"); err != nil {
		t.Fatalf("writer comment: %v", err)
	}

	comments, err := env.svc.ListComments(env.reader.ID, goal.ID)
	if err != nil {
		t.Fatalf("reader list comments: %v", err)
	}
	if len(comments) != 1 || comments[0].Text != "halfway there" {
		t.Errorf("comments = %v, want [halfway there]", comments)
	}
}

func TestDeleteBoardOwnerOnly(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.DeleteBoard(env.writer.ID, env.board.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("writer delete board: err = %v, want ErrPermissionDenied", err)
	}
	if err := env.svc.DeleteBoard(env.owner.ID, env.board.ID); err != nil {
		t.Fatalf("owner delete board: %v", err)
	}

	boards, err := env.svc.ListBoards(env.owner.ID)
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(boards) != 0 {
		t.Errorf("got %d boards after delete, want 0", len(boards))
	}
}
