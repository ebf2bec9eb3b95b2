// Package docs registers the Swagger/OpenAPI description of the HTTP API with
// the swag runtime so gin-swagger can serve it at /swagger.
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
        "/medications": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Medications"],
                "summary": "List medications (paginated)",
                "operationId": "listMedications",
                "responses": {"200": {"description": "OK"}, "304": {"description": "Not Modified"}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Medications"],
                "summary": "Create a medication",
                "operationId": "createMedication",
                "responses": {"201": {"description": "Created"}, "400": {"description": "Invalid schedule"}}
            }
        },
        "/medications/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Medications"],
                "summary": "Fetch a medication",
                "operationId": "getMedication",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Medications"],
                "summary": "Update a medication definition",
                "operationId": "updateMedication",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["Medications"],
                "summary": "Delete a medication",
                "operationId": "deleteMedication",
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}
            }
        },
        "/medications/{id}/taken": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Adherence"],
                "summary": "Toggle a dose taken",
                "operationId": "toggleTaken",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not active on date"}}
            }
        },
        "/medications/{id}/refill": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Refills"],
                "summary": "Record a refill",
                "operationId": "recordRefill",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not tracked"}}
            }
        },
        "/schedule": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Schedule"],
                "summary": "Day schedule",
                "operationId": "getSchedule",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Invalid date"}}
            }
        },
        "/adherence": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Adherence"],
                "summary": "Adherence history snapshot",
                "operationId": "getAdherence",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/refills": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Refills"],
                "summary": "Refill alerts",
                "operationId": "listRefills",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reminders/due": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Reminders"],
                "summary": "Due reminders",
                "operationId": "listDueReminders",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/reminders/{id}/dismiss": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Reminders"],
                "summary": "Dismiss a reminder",
                "operationId": "dismissReminder",
                "responses": {"204": {"description": "Dismissed"}, "400": {"description": "Bad Request"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Medication Adherence API",
	Description:      "Medication schedules, adherence history, refill projection, and dose reminders.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
