package main

import (
	"os"

	"multichat/cmd"
)

// @title        multichat API
// @version      1.0
// @description  多模型聊天后端: 对话、历史、文档检索和网页抓取
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
