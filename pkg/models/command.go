package models

import "fmt"

// CommandType enumerates the closed set of user commands. The dispatcher
// matches exhaustively; an unknown name never reaches it.
type CommandType string

// Commands.
const (
	CommandPlan                  CommandType = "plan"
	CommandAsk                   CommandType = "ask"
	CommandConfirmPlan           CommandType = "confirm_plan"
	CommandNext                  CommandType = "next"
	CommandAll                   CommandType = "all"
	CommandAppendSubtask         CommandType = "append_subtask"
	CommandInsertSubtask         CommandType = "insert_subtask"
	CommandUpdateSubtask         CommandType = "update_subtask"
	CommandSkipSubtask           CommandType = "skip_subtask"
	CommandSetCurrentSubtask     CommandType = "set_current_subtask"
	CommandApplyReviewerRevision CommandType = "apply_reviewer_revision"
	CommandDeleteSession         CommandType = "delete_session"
)

// Command is the tagged variant consumed by the dispatcher. Only the fields
// relevant to Type are set; ParseCommand enforces per-type requirements.
type Command struct {
	Type      CommandType
	Text      string  // ask
	SubtaskID string  // targeted operations
	AfterID   string  // insert_subtask
	Title     string  // append/insert
	Notes     string  // append/insert
	Reason    string  // skip_subtask
	TitleSet  *string // update_subtask patch
	NotesSet  *string // update_subtask patch
}

// ParseCommand builds a Command from a command name and payload map, the
// shape both the HTTP surface and the CLI produce. Unknown names and missing
// required fields are rejected here so the dispatcher only ever sees
// well-formed variants.
func ParseCommand(name string, payload map[string]any) (Command, error) {
	str := func(key string) string {
		v, _ := payload[key].(string)
		return v
	}
	strPtr := func(key string) *string {
		if v, ok := payload[key].(string); ok {
			return &v
		}
		return nil
	}

	switch CommandType(name) {
	case CommandPlan:
		return Command{Type: CommandPlan}, nil
	case CommandConfirmPlan:
		return Command{Type: CommandConfirmPlan}, nil
	case CommandNext:
		return Command{Type: CommandNext}, nil
	case CommandAll:
		return Command{Type: CommandAll}, nil
	case CommandDeleteSession:
		return Command{Type: CommandDeleteSession}, nil
	case CommandAsk:
		text := str("text")
		if text == "" {
			return Command{}, fmt.Errorf("ask requires a non-empty text")
		}
		return Command{Type: CommandAsk, Text: text}, nil
	case CommandAppendSubtask:
		title := str("title")
		if title == "" {
			return Command{}, fmt.Errorf("append_subtask requires a title")
		}
		return Command{Type: CommandAppendSubtask, Title: title, Notes: str("notes")}, nil
	case CommandInsertSubtask:
		title := str("title")
		after := str("after_id")
		if title == "" || after == "" {
			return Command{}, fmt.Errorf("insert_subtask requires title and after_id")
		}
		return Command{Type: CommandInsertSubtask, Title: title, Notes: str("notes"), AfterID: after}, nil
	case CommandUpdateSubtask:
		id := str("subtask_id")
		if id == "" {
			return Command{}, fmt.Errorf("update_subtask requires subtask_id")
		}
		cmd := Command{Type: CommandUpdateSubtask, SubtaskID: id, TitleSet: strPtr("title"), NotesSet: strPtr("notes")}
		if cmd.TitleSet == nil && cmd.NotesSet == nil {
			return Command{}, fmt.Errorf("update_subtask requires a title or notes patch")
		}
		return cmd, nil
	case CommandSkipSubtask:
		id := str("subtask_id")
		if id == "" {
			return Command{}, fmt.Errorf("skip_subtask requires subtask_id")
		}
		return Command{Type: CommandSkipSubtask, SubtaskID: id, Reason: str("reason")}, nil
	case CommandSetCurrentSubtask:
		id := str("subtask_id")
		if id == "" {
			return Command{}, fmt.Errorf("set_current_subtask requires subtask_id")
		}
		return Command{Type: CommandSetCurrentSubtask, SubtaskID: id}, nil
	case CommandApplyReviewerRevision:
		id := str("subtask_id")
		if id == "" {
			return Command{}, fmt.Errorf("apply_reviewer_revision requires subtask_id")
		}
		return Command{Type: CommandApplyReviewerRevision, SubtaskID: id}, nil
	default:
		return Command{}, fmt.Errorf("unknown command: %q", name)
	}
}
