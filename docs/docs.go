// Package docs registers the OpenAPI description served under /swagger.
// Regenerate from the handler annotations with:
//
//	swag init --v3.1 -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag/v2"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/invoices": {"get": {"tags": ["invoices"], "summary": "List invoices", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/invoices/generate": {"post": {"tags": ["invoices"], "summary": "Generate invoices for a period", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/invoices/generate/student": {"post": {"tags": ["invoices"], "summary": "Generate one student's invoice", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "201": {"description": "Created"}}}},
        "/invoices/{id}": {"get": {"tags": ["invoices"], "summary": "Get an invoice", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/invoices/{id}/items": {"post": {"tags": ["invoices"], "summary": "Add an ad-hoc item", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}},
        "/invoices/items/{itemId}": {"delete": {"tags": ["invoices"], "summary": "Remove an item", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/invoices/items/{itemId}/dismissal": {"put": {"tags": ["invoices"], "summary": "Dismiss or restore an optional item", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/fee-structures": {
            "get": {"tags": ["fee-structures"], "summary": "List fee structures", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["fee-structures"], "summary": "Create a fee structure", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/fee-structures/{id}": {
            "put": {"tags": ["fee-structures"], "summary": "Update a fee structure", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["fee-structures"], "summary": "Deactivate a fee structure", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}
        },
        "/fee-structures/{id}/sync": {"post": {"tags": ["fee-structures"], "summary": "Propagate a fee structure to open invoices", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/payments": {"get": {"tags": ["payments"], "summary": "List payments", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/payments/manual": {"post": {"tags": ["payments"], "summary": "Record a cash or cheque payment", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}},
        "/payments/bank-transfer": {"post": {"tags": ["payments"], "summary": "Record a bank transfer", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}},
        "/payments/stk-push": {"post": {"tags": ["payments"], "summary": "Start an M-Pesa STK push", "security": [{"BearerAuth": []}], "responses": {"202": {"description": "Accepted"}}}},
        "/payments/{id}/assign": {"post": {"tags": ["payments"], "summary": "Assign an unmatched paybill payment", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/approvals": {
            "get": {"tags": ["approvals"], "summary": "List approval requests", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["approvals"], "summary": "Request an approval", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/approvals/{id}": {"get": {"tags": ["approvals"], "summary": "Get an approval request", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/approvals/{id}/decision": {"post": {"tags": ["approvals"], "summary": "Approve or reject a request", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/academic-periods": {
            "get": {"tags": ["academic-periods"], "summary": "List academic periods", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["academic-periods"], "summary": "Create an academic period", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/academic-periods/current": {"get": {"tags": ["academic-periods"], "summary": "Get the active period", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/academic-periods/{id}/activate": {"post": {"tags": ["academic-periods"], "summary": "Activate a period", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/audit/{entity}/{id}": {"get": {"tags": ["audit"], "summary": "Audit trail of one entity", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/webhooks/mpesa/stk-callback": {"post": {"tags": ["webhooks"], "summary": "M-Pesa STK push callback", "responses": {"200": {"description": "OK"}}}},
        "/webhooks/mpesa/c2b/validation": {"post": {"tags": ["webhooks"], "summary": "M-Pesa paybill validation", "responses": {"200": {"description": "OK"}}}},
        "/webhooks/mpesa/c2b/confirmation": {"post": {"tags": ["webhooks"], "summary": "M-Pesa paybill confirmation", "responses": {"200": {"description": "OK"}}}},
        "/system/info": {"get": {"tags": ["system"], "summary": "Get system information", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}},
        "/system/ping": {"get": {"tags": ["system"], "summary": "Ping the API", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}}}
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Bearer token authentication. Format: \"Bearer {token}\"",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "School Fees Ledger API",
	Description:      "Multi-tenant fees billing: invoices, payments, M-Pesa reconciliation and approvals.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
