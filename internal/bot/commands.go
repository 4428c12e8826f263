package bot

import (
	"fmt"
	"strings"

	"github.com/Pudxe/todolist/internal/db"
)

// userError carries a message that is safe to show as a chat reply: a bad
// reference, an ambiguous prefix. Storage failures stay ordinary errors.
type userError struct {
	msg string
}

func (e *userError) Error() string { return e.msg }

func userErrorf(format string, args ...any) error {
	return &userError{msg: fmt.Sprintf(format, args...)}
}

func (b *Bot) handleCommand(accountID, text string) (string, error) {
	fields := strings.Fields(text)
	cmd := strings.TrimPrefix(fields[0], "/")
	// Group chats address commands as /cmd@botname.
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	args := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))

	switch cmd {
	case "help":
		return strings.TrimSpace(`Commands:
/goals
/boards
/categories <board>
/new <category> <title>
/done <goal>
/comment <goal> <text>
/newboard <title>

Boards, categories and goals can be referenced by title or id prefix.`), nil
	case "goals":
		return b.commandListGoals(accountID)
	case "boards":
		return b.commandListBoards(accountID)
	case "categories":
		return b.commandListCategories(accountID, args)
	case "new":
		return b.commandNewGoal(accountID, args)
	case "done":
		return b.commandDoneGoal(accountID, args)
	case "comment":
		return b.commandComment(accountID, args)
	case "newboard":
		return b.commandNewBoard(accountID, args)
	default:
		return "Unknown command. Use /help.", nil
	}
}

func (b *Bot) commandListGoals(accountID string) (string, error) {
	gs, err := b.goals.ListGoals(accountID)
	if err != nil {
		return "", err
	}
	if len(gs) == 0 {
		return "No goals yet. Create one with /new <category> <title>.", nil
	}
	lines := make([]string, 0, len(gs)+1)
	lines = append(lines, "Your goals:")
	for _, g := range gs {
		due := ""
		if g.DueDate != nil {
			due = " due " + g.DueDate.Format("2006-01-02")
		}
		lines = append(lines, fmt.Sprintf("• %s [%s]%s %s", shortID(g.ID), g.Status, due, g.Title))
	}
	return strings.Join(lines, "\n"), nil
}

func (b *Bot) commandListBoards(accountID string) (string, error) {
	boards, err := b.goals.ListBoards(accountID)
	if err != nil {
		return "", err
	}
	if len(boards) == 0 {
		return "No boards yet. Create one with /newboard <title>.", nil
	}
	lines := make([]string, 0, len(boards)+1)
	lines = append(lines, "Your boards:")
	for _, bd := range boards {
		lines = append(lines, fmt.Sprintf("• %s %s", shortID(bd.ID), bd.Title))
	}
	return strings.Join(lines, "\n"), nil
}

func (b *Bot) commandListCategories(accountID, args string) (string, error) {
	if args == "" {
		return "Usage: /categories <board>", nil
	}
	board, err := b.resolveBoardRef(accountID, args)
	if err != nil {
		return "", err
	}
	cats, err := b.goals.ListCategories(accountID, board.ID)
	if err != nil {
		return "", err
	}
	if len(cats) == 0 {
		return fmt.Sprintf("No categories on %s yet.", board.Title), nil
	}
	lines := make([]string, 0, len(cats)+1)
	lines = append(lines, fmt.Sprintf("Categories on %s:", board.Title))
	for _, c := range cats {
		lines = append(lines, fmt.Sprintf("• %s %s", shortID(c.ID), c.Title))
	}
	return strings.Join(lines, "\n"), nil
}

func (b *Bot) commandNewGoal(accountID, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "Usage: /new <category> <title>", nil
	}
	cat, err := b.resolveCategoryRef(accountID, fields[0])
	if err != nil {
		return "", err
	}
	title := strings.TrimSpace(strings.Join(fields[1:], " "))
	goal, err := b.goals.CreateGoal(accountID, cat.ID, title)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created goal %s in %s: %s", shortID(goal.ID), cat.Title, goal.Title), nil
}

func (b *Bot) commandDoneGoal(accountID, args string) (string, error) {
	ref := strings.TrimSpace(args)
	if ref == "" {
		return "Usage: /done <goal>", nil
	}
	goal, err := b.resolveGoalRef(accountID, ref)
	if err != nil {
		return "", err
	}
	if _, err := b.goals.UpdateGoalStatus(accountID, goal.ID, db.GoalStatusDone); err != nil {
		return "", err
	}
	return fmt.Sprintf("Done: %s", goal.Title), nil
}

func (b *Bot) commandComment(accountID, args string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
		return "Usage: /comment <goal> <text>", nil
	}
	goal, err := b.resolveGoalRef(accountID, parts[0])
	if err != nil {
		return "", err
	}
	if _, err := b.goals.CreateComment(accountID, goal.ID, strings.TrimSpace(parts[1])); err != nil {
		return "", err
	}
	return fmt.Sprintf("Commented on %s.", goal.Title), nil
}

func (b *Bot) commandNewBoard(accountID, args string) (string, error) {
	title := strings.TrimSpace(args)
	if title == "" {
		return "Usage: /newboard <title>", nil
	}
	board, err := b.goals.CreateBoard(accountID, title)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created board %s: %s", shortID(board.ID), board.Title), nil
}

// resolveBoardRef matches a board the account participates in by exact id,
// exact title, or unique id prefix.
func (b *Bot) resolveBoardRef(accountID, ref string) (*db.Board, error) {
	ref = strings.TrimSpace(ref)
	boards, err := b.goals.ListBoards(accountID)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(ref)
	var prefix []*db.Board
	for _, bd := range boards {
		if bd.ID == ref || strings.EqualFold(bd.Title, ref) {
			return bd, nil
		}
		if strings.HasPrefix(strings.ToLower(bd.ID), lower) {
			prefix = append(prefix, bd)
		}
	}
	switch len(prefix) {
	case 1:
		return prefix[0], nil
	case 0:
		return nil, userErrorf("Board %q not found.", ref)
	default:
		return nil, userErrorf("Board reference %q is ambiguous.", ref)
	}
}

// resolveCategoryRef matches across every board the account participates in.
func (b *Bot) resolveCategoryRef(accountID, ref string) (*db.Category, error) {
	ref = strings.TrimSpace(ref)
	boards, err := b.goals.ListBoards(accountID)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(ref)
	var exact []*db.Category
	var prefix []*db.Category
	for _, bd := range boards {
		cats, err := b.goals.ListCategories(accountID, bd.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range cats {
			if c.ID == ref || strings.EqualFold(c.Title, ref) {
				exact = append(exact, c)
				continue
			}
			if strings.HasPrefix(strings.ToLower(c.ID), lower) {
				prefix = append(prefix, c)
			}
		}
	}
	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		return nil, userErrorf("Category reference %q is ambiguous.", ref)
	case len(prefix) == 1:
		return prefix[0], nil
	case len(prefix) > 1:
		return nil, userErrorf("Category reference %q is ambiguous.", ref)
	default:
		return nil, userErrorf("Category %q not found.", ref)
	}
}

func (b *Bot) resolveGoalRef(accountID, ref string) (*db.Goal, error) {
	ref = strings.TrimSpace(ref)
	gs, err := b.goals.ListGoals(accountID)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(ref)
	var exact []*db.Goal
	var prefix []*db.Goal
	for _, g := range gs {
		if g.ID == ref || strings.EqualFold(g.Title, ref) {
			exact = append(exact, g)
			continue
		}
		if strings.HasPrefix(strings.ToLower(g.ID), lower) {
			prefix = append(prefix, g)
		}
	}
	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		return nil, userErrorf("Goal reference %q is ambiguous.", ref)
	case len(prefix) == 1:
		return prefix[0], nil
	case len(prefix) > 1:
		return nil, userErrorf("Goal reference %q is ambiguous.", ref)
	default:
		return nil, userErrorf("Goal %q not found.", ref)
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
