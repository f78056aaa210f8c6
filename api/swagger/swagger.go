package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Timetable API",
        "description": "Timetable generation engine: queued course and weekly-plan runs, run logs and exports",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetable", "description": "Course generation, weekly planning and run logs"},
        {"name": "Jobs", "description": "Background generation job status"},
        {"name": "Exports", "description": "Class group timetable exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check with generation counters",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/timetable/courses/{id}/generate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Queue schedule generation for one course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/GenerateCourseRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/JobAccepted"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Scheduler disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/courses/{id}/run-logs": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List the latest run logs of a course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/courses/{id}/sessions": {
            "delete": {
                "tags": ["Timetable"],
                "summary": "Delete every session and run log of a course",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ClearCourseResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/plans": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Queue a weekly plan across several courses",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/WeeklyPlanRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/JobAccepted"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/jobs/{jobId}": {
            "get": {
                "tags": ["Jobs"],
                "summary": "Poll a generation job",
                "parameters": [
                    {"name": "jobId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/JobStatus"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/timetable/exports": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export the timetable of a class group",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "classGroupId", "in": "query", "required": true, "type": "integer"},
                    {"name": "from", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "required": true, "type": "string", "format": "date"},
                    {"name": "format", "in": "query", "required": true, "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerateCourseRequest": {
            "type": "object",
            "properties": {
                "windowStart": {"type": "string", "format": "date"},
                "windowEnd": {"type": "string", "format": "date"},
                "weeklyTarget": {"type": "integer", "minimum": 1, "maximum": 60}
            }
        },
        "WeeklyPlanRequest": {
            "type": "object",
            "required": ["courseIds"],
            "properties": {
                "courseIds": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "JobAccepted": {
            "type": "object",
            "properties": {
                "jobId": {"type": "string"},
                "kind": {"type": "string", "enum": ["course_generation", "weekly_plan"]}
            }
        },
        "JobStatus": {
            "type": "object",
            "properties": {
                "jobId": {"type": "string"},
                "kind": {"type": "string"},
                "label": {"type": "string"},
                "state": {"type": "string", "enum": ["PENDING", "RUNNING", "SUCCESS", "ERROR"]},
                "percent": {"type": "integer"},
                "etaSeconds": {"type": "number"},
                "sessionsCreated": {"type": "integer"},
                "completedHours": {"type": "integer"},
                "totalHours": {"type": "integer"},
                "message": {"type": "string"},
                "current": {"type": "string"},
                "result": {"type": "object"}
            }
        },
        "ClearCourseResponse": {
            "type": "object",
            "properties": {
                "courseId": {"type": "integer"},
                "sessionsDeleted": {"type": "integer"},
                "runLogsDeleted": {"type": "integer"}
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
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
