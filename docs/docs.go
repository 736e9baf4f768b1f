// Package docs 注册 /swagger 提供的 OpenAPI 文档。
// 内容与 handler 上的 swag 注释一一对应，修改注释后用 `swag init` 重新生成本文件。
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/chat": {
            "post": {
                "description": "发送一条消息并返回模型回复；conversation_id 为空或不存在时创建对话。支持 JSON 或带 files 的 multipart 表单",
                "consumes": ["application/json", "multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["对话"],
                "summary": "发送消息",
                "parameters": [{"description": "对话请求", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.ChatRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.ChatResponse"}},
                    "400": {"description": "请求参数错误", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "413": {"description": "附件过大", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "429": {"description": "请求过于频繁", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "502": {"description": "模型调用失败", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/chats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["对话管理"],
                "summary": "对话列表",
                "parameters": [{"type": "integer", "description": "返回条数，默认 20", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.ChatListResponse"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["对话管理"],
                "summary": "创建对话",
                "parameters": [{"description": "对话信息", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.CreateChatRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/model.CreateChatResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/chats/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["对话管理"],
                "summary": "对话历史",
                "parameters": [
                    {"type": "string", "description": "对话ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "返回条数，默认 50", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.HistoryResponse"}},
                    "404": {"description": "对话不存在", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["对话管理"],
                "summary": "删除对话",
                "parameters": [{"type": "string", "description": "对话ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.SuccessResponse"}}}
            }
        },
        "/api/chats/{id}/messages": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["对话管理"],
                "summary": "追加消息",
                "parameters": [
                    {"type": "string", "description": "对话ID", "name": "id", "in": "path", "required": true},
                    {"description": "消息", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.SaveMessageRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.SuccessResponse"}}}
            }
        },
        "/api/chats/{id}/system-prompt": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["对话管理"],
                "summary": "更新系统提示词",
                "parameters": [
                    {"type": "string", "description": "对话ID", "name": "id", "in": "path", "required": true},
                    {"description": "提示词，空字符串表示清除", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.UpdateSystemPromptRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.SuccessResponse"}}}
            }
        },
        "/api/upload-document": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["文档"],
                "summary": "上传文档",
                "parameters": [
                    {"type": "file", "description": "文档", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "description": "对话ID", "name": "conversation_id", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.UploadDocumentResponse"}},
                    "413": {"description": "文件过大", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/documents": {
            "get": {
                "produces": ["application/json"],
                "tags": ["文档"],
                "summary": "文档列表",
                "parameters": [{"type": "string", "description": "对话ID", "name": "conversation_id", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.DocumentListResponse"}}}
            }
        },
        "/api/scrape-url": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["工具"],
                "summary": "抓取网页",
                "parameters": [{"description": "网页地址", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.ScrapeRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.ScrapeResponse"}},
                    "502": {"description": "抓取失败", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/api/generate-title": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["对话"],
                "summary": "生成标题",
                "parameters": [{"description": "首条消息", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/model.GenerateTitleRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.TitleResponse"}}}
            }
        },
        "/api/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["对话"],
                "summary": "模型列表",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.ModelsResponse"}}}
            }
        },
        "/health": {
            "get": {"produces": ["application/json"], "tags": ["系统"], "summary": "存活检查", "responses": {"200": {"description": "OK"}}}
        },
        "/api/health": {
            "get": {"produces": ["application/json"], "tags": ["系统"], "summary": "存活检查", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {"produces": ["application/json"], "tags": ["系统"], "summary": "就绪检查", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        }
    },
    "definitions": {
        "http.ErrorResponse": {
            "type": "object",
            "properties": {"code": {"type": "integer"}, "message": {"type": "string"}, "detail": {"type": "string"}}
        },
        "model.ChatRequest": {
            "type": "object",
            "required": ["message"],
            "properties": {"message": {"type": "string"}, "model": {"type": "string"}, "conversation_id": {"type": "string"}, "system_prompt": {"type": "string"}}
        },
        "model.Citation": {
            "type": "object",
            "properties": {"source": {"type": "string"}, "filename": {"type": "string"}, "chunk_index": {"type": "integer"}, "similarity": {"type": "number"}}
        },
        "model.TokenUsage": {
            "type": "object",
            "properties": {"prompt_tokens": {"type": "integer"}, "completion_tokens": {"type": "integer"}, "total_tokens": {"type": "integer"}}
        },
        "model.ChatResponse": {
            "type": "object",
            "properties": {
                "role": {"type": "string"},
                "content": {"type": "string"},
                "response": {"type": "string"},
                "conversation_id": {"type": "string"},
                "model_used": {"type": "string"},
                "citations": {"type": "array", "items": {"$ref": "#/definitions/model.Citation"}},
                "usage": {"$ref": "#/definitions/model.TokenUsage"}
            }
        },
        "model.Chat": {
            "type": "object",
            "properties": {"_id": {"type": "string"}, "id": {"type": "string"}, "title": {"type": "string"}, "model": {"type": "string"}, "system_prompt": {"type": "string"}, "created_at": {"type": "string"}, "updated_at": {"type": "string"}}
        },
        "model.ChatListResponse": {
            "type": "object",
            "properties": {"chats": {"type": "array", "items": {"$ref": "#/definitions/model.Chat"}}}
        },
        "model.CreateChatRequest": {
            "type": "object",
            "required": ["model"],
            "properties": {"id": {"type": "string"}, "title": {"type": "string"}, "model": {"type": "string"}, "system_prompt": {"type": "string"}}
        },
        "model.CreateChatResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "chat_id": {"type": "string"}}
        },
        "model.StoredMessage": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "chat_id": {"type": "string"}, "role": {"type": "string"}, "content": {"type": "string"}, "model": {"type": "string"}, "citations": {"type": "array", "items": {"$ref": "#/definitions/model.Citation"}}, "timestamp": {"type": "string"}}
        },
        "model.HistoryResponse": {
            "type": "object",
            "properties": {"messages": {"type": "array", "items": {"$ref": "#/definitions/model.StoredMessage"}}}
        },
        "model.SaveMessageRequest": {
            "type": "object",
            "required": ["role", "content"],
            "properties": {"role": {"type": "string"}, "content": {"type": "string"}}
        },
        "model.UpdateSystemPromptRequest": {
            "type": "object",
            "properties": {"system_prompt": {"type": "string"}}
        },
        "model.SuccessResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "message": {"type": "string"}}
        },
        "model.UploadDocumentResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "message": {"type": "string"}, "document_id": {"type": "string"}, "filename": {"type": "string"}, "chunk_count": {"type": "integer"}}
        },
        "model.Document": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "conversation_id": {"type": "string"}, "filename": {"type": "string"}, "content_type": {"type": "string"}, "size": {"type": "integer"}, "chunk_count": {"type": "integer"}, "embedded": {"type": "boolean"}, "created_at": {"type": "string"}}
        },
        "model.DocumentListResponse": {
            "type": "object",
            "properties": {"documents": {"type": "array", "items": {"$ref": "#/definitions/model.Document"}}}
        },
        "model.ScrapeRequest": {
            "type": "object",
            "required": ["url"],
            "properties": {"url": {"type": "string"}}
        },
        "model.ScrapeResponse": {
            "type": "object",
            "properties": {"success": {"type": "boolean"}, "url": {"type": "string"}, "title": {"type": "string"}, "content": {"type": "string"}}
        },
        "model.GenerateTitleRequest": {
            "type": "object",
            "required": ["content"],
            "properties": {"content": {"type": "string"}, "model": {"type": "string"}}
        },
        "model.TitleResponse": {
            "type": "object",
            "properties": {"title": {"type": "string"}}
        },
        "model.Capability": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "display_name": {"type": "string"}, "provider": {"type": "string"}, "supports_files": {"type": "boolean"}, "supports_system_prompt": {"type": "boolean"}}
        },
        "model.ModelsResponse": {
            "type": "object",
            "properties": {"models": {"type": "array", "items": {"$ref": "#/definitions/model.Capability"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "multichat API",
	Description:      "多模型聊天后端: 对话、历史、文档检索和网页抓取",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
