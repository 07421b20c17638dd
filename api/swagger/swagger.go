package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Enrichment Registrar API",
        "description": "Student registration, grade entry and transcript issuance for the enrichment programme",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Student and administrator sign-in"},
        {"name": "Students", "description": "Registration, profiles and roster"},
        {"name": "Grades", "description": "Grade entry and running GPA"},
        {"name": "Transcripts", "description": "Transcript records, PDFs and bulk archives"},
        {"name": "Exports", "description": "Roster exports"}
    ],
    "paths": {
        "/users/register": {
            "post": {
                "tags": ["Students"],
                "summary": "Register a student",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "registrationType", "in": "formData", "type": "string", "enum": ["NEW", "OLD"], "required": true},
                    {"name": "name", "in": "formData", "type": "string", "required": true},
                    {"name": "email", "in": "formData", "type": "string", "required": true},
                    {"name": "password", "in": "formData", "type": "string", "required": true},
                    {"name": "dateOfBirth", "in": "formData", "type": "string", "required": true},
                    {"name": "basisOfAdmission", "in": "formData", "type": "string", "required": true},
                    {"name": "collegeAttended", "in": "formData", "type": "string", "required": true},
                    {"name": "gender", "in": "formData", "type": "string", "enum": ["Male", "Female", "Others"], "required": true},
                    {"name": "maritalStatus", "in": "formData", "type": "string", "enum": ["Married", "Unmarried"], "required": true},
                    {"name": "motherTongue", "in": "formData", "type": "string", "required": true},
                    {"name": "isAdventist", "in": "formData", "type": "string", "enum": ["Yes", "No"], "required": true},
                    {"name": "phoneNumber", "in": "formData", "type": "string", "required": true},
                    {"name": "union", "in": "formData", "type": "string"},
                    {"name": "sectionRegionConference", "in": "formData", "type": "string"},
                    {"name": "address", "in": "formData", "type": "string"},
                    {"name": "paymentScreenshot", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "Screenshot too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentLoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/users/profile/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get a student profile",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Bootstrap an administrator account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdminCredentials"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Bootstrap disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Username taken", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate administrator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdminCredentials"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/users": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "registrationType", "in": "query", "type": "string", "enum": ["NEW", "OLD"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"},
                    {"name": "sortBy", "in": "query", "type": "string"},
                    {"name": "sortOrder", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/update-grades/{id}": {
            "put": {
                "tags": ["Grades"],
                "summary": "Update a student's course scores",
                "description": "Letter grades and points are derived server-side with the live-entry scale. Unknown course keys are ignored.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateGradesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "GPA could not be computed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/transcripts/{id}": {
            "get": {
                "tags": ["Transcripts"],
                "summary": "Transcript record",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/download-certificate/{id}": {
            "get": {
                "tags": ["Transcripts"],
                "summary": "Download a transcript PDF",
                "produces": ["application/pdf"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "PDF document", "schema": {"type": "file"}},
                    "404": {"description": "Student not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/download-certificates": {
            "post": {
                "tags": ["Transcripts"],
                "summary": "Queue a ZIP of every student's transcript",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No students", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/download-certificates/{id}": {
            "get": {
                "tags": ["Transcripts"],
                "summary": "Bulk transcript job status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Job not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/export/csv": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export every student as CSV",
                "produces": ["text/csv"],
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "students.csv", "schema": {"type": "file"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Transcripts"],
                "summary": "Download a finished transcript archive",
                "produces": ["application/zip"],
                "parameters": [
                    {"name": "token", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Certificates.zip", "schema": {"type": "file"}},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "StudentLoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "AdminCredentials": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "GradeInput": {
            "type": "object",
            "properties": {
                "score": {"description": "number or numeric string; anything else is stored as 0"}
            }
        },
        "UpdateGradesRequest": {
            "type": "object",
            "required": ["grades"],
            "properties": {
                "grades": {"type": "object", "additionalProperties": {"$ref": "#/definitions/GradeInput"}}
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
                "message": {"type": "string"},
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
