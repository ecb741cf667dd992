package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Tutor Booking API",
        "description": "Instructor availability and slot booking service",
        "version": "1.0.0"
    },
    "basePath": "/api",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Registration and login"},
        {"name": "Availability", "description": "Instructor availability management"},
        {"name": "Bookings", "description": "Slot resolution and reservations"},
        {"name": "Instructors", "description": "Instructor directory"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Register a new account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Email already registered"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and obtain an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "Get the caller's availability record",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Availability"],
                "summary": "Set one-time or recurring availability",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetAvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "put": {
                "tags": ["Availability"],
                "summary": "Replace one-time slots for a date",
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "delete": {
                "tags": ["Availability"],
                "summary": "Delete availability by most-specific key",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/availability/bulk": {
            "put": {
                "tags": ["Availability"],
                "summary": "Bulk add or remove recurring availability",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/available-slots/{instructorId}/{date}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List free slots of an instructor for a date",
                "parameters": [
                    {"name": "instructorId", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List the caller's bookings grouped by date and slot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Bookings"],
                "summary": "Book a slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Slot not available"},
                    "409": {"description": "Slot already booked"}
                }
            }
        },
        "/bookings/export": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Download the caller's bookings as CSV or PDF",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/bookings/export-jobs": {
            "post": {
                "tags": ["Bookings"],
                "summary": "Queue a booking export for background rendering",
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/bookings/export-jobs/{id}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Check the state of a queued export",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Export job not found"}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Bookings"],
                "summary": "Download a finished export using its signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        },
        "/student-bookings": {
            "get": {
                "tags": ["Bookings"],
                "summary": "List the caller's bookings across all instructors",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instructors": {
            "get": {
                "tags": ["Instructors"],
                "summary": "List instructors available for booking",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/instructors/{id}/availability": {
            "get": {
                "tags": ["Instructors"],
                "summary": "Get a verified instructor's availability record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Instructor not found"}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["email", "password", "name", "role"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"},
                "name": {"type": "string"},
                "role": {"type": "string", "enum": ["instructor", "student"]}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SetAvailabilityRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "timeSlots": {"type": "array", "items": {"type": "string"}},
                "recurring": {"$ref": "#/definitions/RecurringRequest"}
            }
        },
        "RecurringRequest": {
            "type": "object",
            "required": ["dayOfWeek", "startTime", "endTime"],
            "properties": {
                "dayOfWeek": {"type": "integer", "minimum": 0, "maximum": 6},
                "startTime": {"type": "string"},
                "endTime": {"type": "string"}
            }
        },
        "BookRequest": {
            "type": "object",
            "required": ["instructorId", "date", "timeSlot", "purpose"],
            "properties": {
                "instructorId": {"type": "string"},
                "date": {"type": "string"},
                "timeSlot": {"type": "string"},
                "purpose": {"type": "string"},
                "prerequisites": {"type": "string"}
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
                "message": {"type": "string"},
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
