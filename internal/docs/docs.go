// Package docs registers the swagger document served at /swagger.
// Regenerate with: swag init -g cmd/api/main.go -o internal/docs
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
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login user",
                "parameters": [
                    {"description": "User login credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "User authenticated", "schema": {"$ref": "#/definitions/handlers.Response"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "423": {"description": "Account locked", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Refresh tokens",
                "parameters": [
                    {"description": "Refresh token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "New token pair", "schema": {"$ref": "#/definitions/handlers.Response"}},
                    "401": {"description": "Invalid refresh token", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/profile": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["user"],
                "summary": "Get user profile",
                "responses": {
                    "200": {"description": "User profile", "schema": {"$ref": "#/definitions/handlers.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.DetailResponse"}}
                }
            }
        },
        "/{slug}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["entities"],
                "summary": "List published objects",
                "parameters": [{"type": "string", "description": "Content type, e.g. campaign", "name": "slug", "in": "path", "required": true}],
                "responses": {"200": {"description": "Published objects", "schema": {"$ref": "#/definitions/handlers.Response"}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["entities"],
                "summary": "Propose a new object",
                "parameters": [
                    {"type": "string", "description": "Content type", "name": "slug", "in": "path", "required": true},
                    {"description": "Object fields", "name": "request", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Change request created", "schema": {"$ref": "#/definitions/handlers.Response"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.DetailResponse"}}
                }
            }
        },
        "/change_request": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["changes"],
                "summary": "List change requests",
                "parameters": [
                    {"type": "integer", "description": "Status 0-6", "name": "status", "in": "query"},
                    {"type": "string", "description": "Content type", "name": "content_type", "in": "query"},
                    {"type": "integer", "description": "Page number", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "Change requests", "schema": {"$ref": "#/definitions/handlers.Response"}}}
            }
        },
        "/change_request/{id}/{action}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["changes"],
                "summary": "Move a change request through the workflow",
                "parameters": [
                    {"type": "string", "description": "Change UUID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Workflow action", "name": "action", "in": "path", "required": true},
                    {"description": "Reviewer notes", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handlers.TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Change moved", "schema": {"$ref": "#/definitions/handlers.Response"}},
                    "400": {"description": "Transition not allowed from current status", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/deploy": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Trigger deploy",
                "responses": {
                    "200": {"description": "Deploy triggered", "schema": {"$ref": "#/definitions/handlers.Response"}},
                    "503": {"description": "Workflow not configured", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/pipeline/gcmd/sync": {
            "post": {
                "security": [{"PipelineKey": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["pipeline"],
                "summary": "Sync GCMD keywords",
                "parameters": [{"description": "Schemes to sync", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handlers.GcmdSyncRequest"}}],
                "responses": {"200": {"description": "Sync results", "schema": {"$ref": "#/definitions/handlers.Response"}}}
            }
        }
    },
    "definitions": {
        "handlers.Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "code": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "message": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "handlers.DetailResponse": {
            "type": "object",
            "properties": {"detail": {"type": "string"}}
        },
        "handlers.LoginRequest": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"password": {"type": "string"}, "username": {"type": "string", "maxLength": 150}}
        },
        "handlers.RefreshRequest": {
            "type": "object",
            "required": ["refresh"],
            "properties": {"refresh": {"type": "string"}}
        },
        "handlers.TransitionRequest": {
            "type": "object",
            "properties": {"notes": {"type": "string", "maxLength": 2000}}
        },
        "handlers.GcmdSyncRequest": {
            "type": "object",
            "properties": {"schemes": {"type": "array", "items": {"type": "string"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        },
        "PipelineKey": {
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "CASEI API",
	Description:      "Moderated metadata service for airborne and field campaign inventories. Every edit is a change request that moves through review before it is published.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
