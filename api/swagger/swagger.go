package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Classroom Sync API",
        "description": "Authoritative record store, broadcast channel and grading computations for live classroom clients",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Records", "description": "Authoritative class record store"},
        {"name": "Grading", "description": "Structured grading documents"},
        {"name": "Grades", "description": "Computed grade summaries and exports"},
        {"name": "Broadcast", "description": "Class-scoped event channel"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/classes/{classId}/records/{kind}": {
            "get": {
                "tags": ["Records"],
                "summary": "List class records of one kind",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Records"],
                "summary": "Create a record",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRecordRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/records/{kind}/{id}": {
            "get": {
                "tags": ["Records"],
                "summary": "Fetch one record snapshot",
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Records"],
                "summary": "Merge a partial field update into a record",
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PatchRecordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Records"],
                "summary": "Delete a record",
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/classes/{classId}/grading/documents/{docKind}": {
            "put": {
                "tags": ["Grading"],
                "summary": "Store a structured grading document verbatim",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "docKind", "in": "path", "required": true, "type": "string", "enum": ["mark-scheme", "boundaries"]},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{classId}/grading/documents/{docKind}/versions": {
            "get": {
                "tags": ["Grading"],
                "summary": "List stored versions of a grading document",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "docKind", "in": "path", "required": true, "type": "string", "enum": ["mark-scheme", "boundaries"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{classId}/grading/scheme": {
            "get": {
                "tags": ["Grading"],
                "summary": "Fetch the class rubric in canonical shape",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/RubricScheme"}}
                }
            }
        },
        "/classes/{classId}/grading/boundaries": {
            "get": {
                "tags": ["Grading"],
                "summary": "Fetch the class grading boundaries in canonical shape",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{classId}/grades/preview": {
            "post": {
                "tags": ["Grades"],
                "summary": "Compute a grade summary for an ad-hoc selection",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmissionGrade"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/GradeSummary"}}
                }
            }
        },
        "/classes/{classId}/submissions/{id}/grade": {
            "get": {
                "tags": ["Grades"],
                "summary": "Compute the grade summary of a stored submission",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/GradeSummary"}}
                }
            }
        },
        "/classes/{classId}/grade-sheet": {
            "get": {
                "tags": ["Grades"],
                "summary": "Export the class grade sheet",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["Broadcast"],
                "summary": "Open the class broadcast channel",
                "parameters": [
                    {"name": "sender", "in": "query", "type": "string"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"}
                }
            }
        }
    },
    "definitions": {
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "RecordSnapshot": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "class_id": {"type": "string"},
                "kind": {"type": "string"},
                "revision": {"type": "integer"},
                "fields": {"type": "object"},
                "updated_at": {"type": "string"}
            }
        },
        "CreateRecordRequest": {
            "type": "object",
            "properties": {
                "class_id": {"type": "string"},
                "fields": {"type": "object"}
            }
        },
        "PatchRecordRequest": {
            "type": "object",
            "properties": {
                "fields": {"type": "object"},
                "expected_revision": {"type": "integer"}
            }
        },
        "RubricScheme": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "criteria": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/Criterion"}
                }
            }
        },
        "Criterion": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "levels": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/Level"}
                }
            }
        },
        "Level": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "points": {"type": "number"},
                "color": {"type": "string"}
            }
        },
        "SubmissionGrade": {
            "type": "object",
            "properties": {
                "selections": {"type": "object"},
                "overrides": {"type": "object"},
                "comments": {"type": "object"}
            }
        },
        "GradeSummary": {
            "type": "object",
            "properties": {
                "total_score": {"type": "number"},
                "max_points": {"type": "number"},
                "percentage": {"type": "number"},
                "letter": {"type": "string"},
                "color": {"type": "string"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
