// Package docs registers the OpenAPI description served at /swagger.
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
        "/convert": {
            "post": {
                "description": "Convert an upload and return the glTF output directly",
                "consumes": ["multipart/form-data"],
                "produces": ["application/octet-stream"],
                "tags": ["exports"],
                "summary": "Convert a document",
                "parameters": [
                    {"type": "file", "description": "Document or archive", "name": "file", "in": "formData", "required": true},
                    {"type": "boolean", "description": "Export only selected objects", "name": "exportSelectedOnly", "in": "formData"},
                    {"type": "string", "description": "Selection predicate: any, partial or full", "name": "predicate", "in": "formData"},
                    {"type": "string", "description": "Output format: gltf or glb", "name": "format", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "glTF or GLB document", "schema": {"type": "file"}},
                    "400": {"description": "Bad request", "schema": {"type": "object", "additionalProperties": true}},
                    "422": {"description": "Conversion failed", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/exports": {
            "get": {
                "description": "Gets stored exports, newest first",
                "produces": ["application/json"],
                "tags": ["exports"],
                "summary": "List exports",
                "parameters": [
                    {"type": "integer", "description": "Maximum number of exports", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Number of exports to skip", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "List of exports", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Export"}}},
                    "400": {"description": "Bad request", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "post": {
                "description": "Upload a decoded document, a .3dm file or an archive holding one. The glTF output is stored and can be downloaded later.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["exports"],
                "summary": "Convert and store a document",
                "parameters": [
                    {"type": "file", "description": "Document or archive", "name": "file", "in": "formData", "required": true},
                    {"type": "boolean", "description": "Export only selected objects", "name": "exportSelectedOnly", "in": "formData"},
                    {"type": "string", "description": "Selection predicate: any, partial or full", "name": "predicate", "in": "formData"},
                    {"type": "string", "description": "Output format: gltf or glb", "name": "format", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Export created", "schema": {"$ref": "#/definitions/handlers.CreateExportResponse"}},
                    "400": {"description": "Bad request", "schema": {"type": "object", "additionalProperties": true}},
                    "422": {"description": "Conversion failed", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "description": "Get the metadata of a stored export",
                "produces": ["application/json"],
                "tags": ["exports"],
                "summary": "Get an export by ID",
                "parameters": [{"type": "string", "description": "Export ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Export found", "schema": {"$ref": "#/definitions/models.Export"}},
                    "400": {"description": "Invalid UUID", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Export not found", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "delete": {
                "description": "Delete the stored output and metadata of an export",
                "tags": ["exports"],
                "summary": "Delete an export",
                "parameters": [{"type": "string", "description": "Export ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Invalid UUID", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Export not found", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/exports/{id}/download": {
            "get": {
                "description": "Download the glTF output of a stored export. Served from the cache when possible.",
                "produces": ["application/octet-stream"],
                "tags": ["exports"],
                "summary": "Download an export",
                "parameters": [{"type": "string", "description": "Export ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "glTF or GLB document", "schema": {"type": "file"}},
                    "400": {"description": "Invalid UUID", "schema": {"type": "object", "additionalProperties": true}},
                    "404": {"description": "Export not found", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/cache/stats": {
            "get": {
                "description": "Get per-layer statistics of the export cache",
                "produces": ["application/json"],
                "tags": ["cache"],
                "summary": "Get cache statistics",
                "responses": {
                    "200": {"description": "Cache statistics", "schema": {"$ref": "#/definitions/services.MultiLayerCacheStats"}},
                    "503": {"description": "Cache disabled", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/cache/exports/{id}": {
            "delete": {
                "description": "Remove a specific export from every cache layer",
                "tags": ["cache"],
                "summary": "Invalidate cached export",
                "parameters": [{"type": "string", "description": "Export ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Invalid UUID", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Cache disabled", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/cache/clear": {
            "post": {
                "description": "Remove all exports from every cache layer",
                "produces": ["application/json"],
                "tags": ["cache"],
                "summary": "Clear entire cache",
                "responses": {
                    "200": {"description": "Cache cleared", "schema": {"type": "object", "additionalProperties": true}},
                    "500": {"description": "Internal server error", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Cache disabled", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "models.Export": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "original_filename": {"type": "string"},
                "format": {"type": "string"},
                "content_type": {"type": "string"},
                "size": {"type": "integer"},
                "storage_key": {"type": "string"},
                "node_count": {"type": "integer"},
                "skipped_count": {"type": "integer"},
                "export_selected_only": {"type": "boolean"},
                "created_at": {"type": "string"}
            }
        },
        "scene.Warning": {
            "type": "object",
            "properties": {
                "objectIndex": {"type": "integer"},
                "objectId": {"type": "string"},
                "kind": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "handlers.CreateExportResponse": {
            "type": "object",
            "properties": {
                "export": {"$ref": "#/definitions/models.Export"},
                "warnings": {"type": "array", "items": {"$ref": "#/definitions/scene.Warning"}}
            }
        },
        "cache.LayerStats": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "exports": {"type": "integer"},
                "sizeBytes": {"type": "integer"},
                "hits": {"type": "integer"},
                "misses": {"type": "integer"},
                "hitRate": {"type": "number"}
            }
        },
        "services.MultiLayerCacheStats": {
            "type": "object",
            "properties": {
                "memory": {"$ref": "#/definitions/cache.LayerStats"},
                "fileSystem": {"$ref": "#/definitions/cache.LayerStats"},
                "redis": {"$ref": "#/definitions/cache.LayerStats"},
                "strategy": {"type": "object", "additionalProperties": true}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/export",
	Schemes:          []string{},
	Title:            "glTF Export Service API",
	Description:      "Converts CAD documents to glTF 2.0 and serves the stored results.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
