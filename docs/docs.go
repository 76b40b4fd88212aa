// Package docs registers the OpenAPI description of the read API with swag,
// which serves it under /docs. The template follows swag's generated layout;
// keep it in step with the handler annotations when routes change.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Scoracle"
        },
        "license": {
            "name": "MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "description": "Returns API name, version, status, and available optimizations.",
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "API root info",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Returns basic health status and timestamp.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health/db": {
            "get": {
                "description": "Verifies Postgres connectivity.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Database health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/health/cache": {
            "get": {
                "description": "Returns in-memory cache statistics (active keys, expired keys).",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Cache health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/players": {
            "get": {
                "description": "Case-insensitive substring search over canonical player names.",
                "produces": ["application/json"],
                "tags": ["players"],
                "summary": "Search players by name",
                "parameters": [
                    {"type": "string", "description": "Name fragment (at least 2 characters)", "name": "name", "in": "query", "required": true},
                    {"type": "integer", "default": 100, "description": "Maximum results (1-1000)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object", "additionalProperties": true}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/players/{id}": {
            "get": {
                "description": "Returns the canonical record for a player, every field with the source snapshot that contributed it. Synthetic ids have the form name:<hex>.",
                "produces": ["application/json"],
                "tags": ["players"],
                "summary": "Get canonical player",
                "parameters": [
                    {"type": "string", "description": "Canonical ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "304": {"description": "Not Modified"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/players/{id}/stints": {
            "get": {
                "description": "Returns the career stints parsed from the player's club history, in source order.",
                "produces": ["application/json"],
                "tags": ["players"],
                "summary": "Get career stints",
                "parameters": [
                    {"type": "string", "description": "Canonical ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object", "additionalProperties": true}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/audit/corrections": {
            "get": {
                "description": "Returns the scale corrections of the most recently published run, with original and corrected values so each can be reversed.",
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "Get correction audit",
                "parameters": [
                    {"type": "string", "description": "Only corrections for this canonical ID", "name": "id", "in": "query"},
                    {"type": "integer", "default": 100, "description": "Maximum results (1-1000)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object", "additionalProperties": true}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/review": {
            "get": {
                "description": "Returns the items of the most recently published run that need a human decision: field conflicts, name collisions, ambiguous names and values still high after scale correction.",
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "Get manual review items",
                "parameters": [
                    {"enum": ["field_conflict", "name_collision", "ambiguous_name", "scale_still_high"], "type": "string", "description": "Review kind", "name": "kind", "in": "query"},
                    {"type": "integer", "default": 100, "description": "Maximum results (1-1000)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "object", "additionalProperties": true}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/runs/latest": {
            "get": {
                "description": "Returns the id, timing, snapshot list and summary counts of the most recently published run.",
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "Get latest run",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/respond.Problem"}
            }
        },
        "respond.Problem": {
            "type": "object",
            "required": ["code", "detail"],
            "properties": {
                "code": {"type": "string", "example": "NOT_FOUND"},
                "detail": {"type": "string"},
                "canonical_id": {"type": "string", "example": "108390"},
                "param": {"type": "string", "example": "limit"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Scoracle Canon API",
	Description:      "Read API over the canonical football player dataset: merged player records, career stints, the scale correction audit and the manual review queue of the latest published run.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
