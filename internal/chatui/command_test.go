package chatui

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseCommand(t *testing.T) {
	Convey("解析输入行", t, func() {
		cases := []struct {
			line string
			name CommandName
			arg  string
		}{
			{"hello there", "", "hello there"},
			{"  padded  ", "", "padded"},
			{"//not a command", "", "/not a command"},
			{"/new", CmdNew, ""},
			{"/new gpt-4o", CmdNew, "gpt-4o"},
			{"/NEW  gpt-4o ", CmdNew, "gpt-4o"},
			{"/open 3", CmdOpen, "3"},
			{"/prompt You are a pirate. Answer briefly.", CmdPrompt, "You are a pirate. Answer briefly."},
			{"/exit", CmdQuit, ""},
			{"/q", CmdQuit, ""},
			{"/ls", CmdList, ""},
			{"/rm 2", CmdDelete, "2"},
			{"/attach ./notes.md", CmdAttach, "./notes.md"},
			{"/scrape https://example.com", CmdScrape, "https://example.com"},
		}
		for _, c := range cases {
			cmd, err := ParseCommand(c.line)
			So(err, ShouldBeNil)
			So(cmd.Name, ShouldEqual, c.name)
			So(cmd.Arg, ShouldEqual, c.arg)
		}

		Convey("未知命令", func() {
			_, err := ParseCommand("/frobnicate")
			So(errors.Is(err, ErrUnknownCommand), ShouldBeTrue)
		})

		Convey("缺少必填参数", func() {
			for _, line := range []string{"/open", "/scrape", "/theme", "/upload  "} {
				_, err := ParseCommand(line)
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldStartWith, "usage:")
			}
		})

		Convey("帮助包含全部命令", func() {
			help := HelpText()
			for _, name := range commandOrder {
				So(help, ShouldContainSubstring, commands[name].usage)
			}
			So(len(commandOrder), ShouldEqual, len(commands))
		})
	})
}
