// Package swagger registers the scriptex OpenAPI document with swag.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/jackzampolin/scriptex"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "description": "Name, version and the available routes",
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "Service information",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/endpoints.IndexResponse"}
                    }
                }
            }
        },
        "/generate_latex/{scriptId}": {
            "get": {
                "description": "Transcribes every page image of the script and assembles a LaTeX document.",
                "produces": ["application/json"],
                "tags": ["latex"],
                "summary": "Generate LaTeX for a script",
                "parameters": [
                    {"type": "string", "description": "Script ID", "name": "scriptId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/pipeline.RunResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/pipeline.RunResult"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/pipeline.RunResult"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/generate_latex/{scriptId}/no_save": {
            "get": {
                "description": "Same as /generate_latex/{scriptId} without persistence.",
                "produces": ["application/json"],
                "tags": ["latex"],
                "summary": "Generate LaTeX for a script without saving",
                "parameters": [
                    {"type": "string", "description": "Script ID", "name": "scriptId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/pipeline.RunResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/pipeline.RunResult"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/pipeline.RunResult"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/endpoints.ErrorResponse"}}
                }
            }
        },
        "/test_images/{scriptId}": {
            "get": {
                "description": "Fetches the page images without calling the model and reports sizes, a preview and thumbnails.",
                "produces": ["application/json"],
                "tags": ["diagnostics"],
                "summary": "Inspect a script's images",
                "parameters": [
                    {"type": "string", "description": "Script ID", "name": "scriptId", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/images.Report"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/endpoints.ImagesErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/endpoints.ImagesErrorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "description": "Probes the persistence service, the image source and the model provider. Always answers 200; inspect status for the verdict.",
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "Collaborator health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/endpoints.HealthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "endpoints.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "endpoints.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "services": {
                    "type": "object",
                    "additionalProperties": {"$ref": "#/definitions/endpoints.ServiceStatus"}
                }
            }
        },
        "endpoints.ImagesErrorResponse": {
            "type": "object",
            "properties": {
                "scriptId": {"type": "string"},
                "error": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "endpoints.IndexResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"},
                "version": {"type": "string"},
                "endpoints": {"type": "object", "additionalProperties": {"type": "string"}},
                "description": {"type": "string"}
            }
        },
        "endpoints.ServiceStatus": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "url": {"type": "string"},
                "provider": {"type": "string"},
                "error": {"type": "string"},
                "rate_limit": {"$ref": "#/definitions/providers.RateLimiterStatus"}
            }
        },
        "providers.RateLimiterStatus": {
            "type": "object",
            "properties": {
                "tokens_available": {"type": "integer"},
                "tokens_limit": {"type": "integer"},
                "utilization": {"type": "number"},
                "time_until_token": {"type": "integer"},
                "total_consumed": {"type": "integer"},
                "total_waited": {"type": "integer"},
                "last_429_time": {"type": "string"}
            }
        },
        "images.Report": {
            "type": "object",
            "properties": {
                "scriptId": {"type": "string"},
                "imagesFound": {"type": "integer"},
                "imageSizes": {"type": "array", "items": {"type": "integer"}},
                "firstImagePreview": {"type": "string"},
                "thumbnails": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string"}
            }
        },
        "pipeline.RunResult": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "scriptId": {"type": "string"},
                "message": {"type": "string"},
                "latexContent": {"type": "string"},
                "completeDocument": {"type": "string"},
                "pagesProcessed": {"type": "integer"},
                "errors": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:5001",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "scriptex API",
	Description:      "Converts handwritten answer-script page images into LaTeX documents.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
