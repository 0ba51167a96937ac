// Package domain holds the value types of the announcement engine:
// campaigns and their block documents, contacts, tracked links, the
// campaign event log and NPS feedback.
//
// Nothing here touches storage or HTTP. Handlers, services and
// repositories all speak these types, so the package imports no other
// internal/ package and keeps *sql.DB, http.Request and context.Context
// out of its structs. JSON tags, enums and pure validation helpers
// belong here.
package domain
