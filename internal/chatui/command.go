package chatui

import (
	"errors"
	"fmt"
	"strings"
)

// CommandName 是斜杠命令名（不含 /）
type CommandName string

const (
	CmdNew     CommandName = "new"
	CmdList    CommandName = "list"
	CmdOpen    CommandName = "open"
	CmdDelete  CommandName = "delete"
	CmdModel   CommandName = "model"
	CmdModels  CommandName = "models"
	CmdPrompt  CommandName = "prompt"
	CmdAttach  CommandName = "attach"
	CmdUpload  CommandName = "upload"
	CmdDocs    CommandName = "docs"
	CmdScrape  CommandName = "scrape"
	CmdTheme   CommandName = "theme"
	CmdHistory CommandName = "history"
	CmdHelp    CommandName = "help"
	CmdQuit    CommandName = "quit"
)

// Command 是解析后的一行输入。Name 为空表示普通消息，Arg 为去掉命令名后的原文
type Command struct {
	Name CommandName
	Arg  string
}

// IsMessage reports whether the line should be sent to the model.
func (c Command) IsMessage() bool { return c.Name == "" }

type commandSpec struct {
	usage   string
	summary string
	argReq  bool
}

var commands = map[CommandName]commandSpec{
	CmdNew:     {usage: "/new [model]", summary: "start a new conversation"},
	CmdList:    {usage: "/list", summary: "list conversations"},
	CmdOpen:    {usage: "/open <n|id>", summary: "switch to a conversation", argReq: true},
	CmdDelete:  {usage: "/delete [n|id]", summary: "delete a conversation (default: current)"},
	CmdModel:   {usage: "/model [id]", summary: "show or change the active model"},
	CmdModels:  {usage: "/models", summary: "list available models"},
	CmdPrompt:  {usage: "/prompt [text|clear]", summary: "show or set the system prompt"},
	CmdAttach:  {usage: "/attach [path|clear]", summary: "attach a file to the next message"},
	CmdUpload:  {usage: "/upload <path>", summary: "upload a document for retrieval", argReq: true},
	CmdDocs:    {usage: "/docs", summary: "list uploaded documents"},
	CmdScrape:  {usage: "/scrape <url>", summary: "fetch a web page and ask about it", argReq: true},
	CmdTheme:   {usage: "/theme <dark|light>", summary: "change the markdown theme", argReq: true},
	CmdHistory: {usage: "/history", summary: "reprint the current conversation"},
	CmdHelp:    {usage: "/help", summary: "show this help"},
	CmdQuit:    {usage: "/quit", summary: "exit"},
}

var aliases = map[string]CommandName{
	"exit": CmdQuit,
	"q":    CmdQuit,
	"ls":   CmdList,
	"rm":   CmdDelete,
	"h":    CmdHelp,
	"?":    CmdHelp,
}

// commandOrder is the order used by help output.
var commandOrder = []CommandName{
	CmdNew, CmdList, CmdOpen, CmdDelete, CmdModel, CmdModels, CmdPrompt,
	CmdAttach, CmdUpload, CmdDocs, CmdScrape, CmdTheme, CmdHistory, CmdHelp, CmdQuit,
}

var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand 解析一行输入。以 / 开头的是命令，"//" 开头的行按消息发送（去掉一个 /）
func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Arg: trimmed}, nil
	}
	if strings.HasPrefix(trimmed, "//") {
		return Command{Arg: trimmed[1:]}, nil
	}

	body := trimmed[1:]
	name, arg, _ := strings.Cut(body, " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	cmd := CommandName(name)
	if alias, ok := aliases[name]; ok {
		cmd = alias
	}
	spec, ok := commands[cmd]
	if !ok {
		return Command{}, fmt.Errorf("%w: /%s (try /help)", ErrUnknownCommand, name)
	}
	if spec.argReq && arg == "" {
		return Command{}, fmt.Errorf("usage: %s", spec.usage)
	}
	return Command{Name: cmd, Arg: arg}, nil
}

// HelpText lists every command with its usage.
func HelpText() string {
	var b strings.Builder
	for _, name := range commandOrder {
		spec := commands[name]
		fmt.Fprintf(&b, "  %-22s %s\n", spec.usage, spec.summary)
	}
	b.WriteString("  Lines not starting with / are sent to the model; start with // to send a literal /.\n")
	return b.String()
}
