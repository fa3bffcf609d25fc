// Command climatematch compares temperature series from request files without
// Kafka. It prints the ranking of each request and can keep a report history
// in the same SQLite database the service writes to.
//
//	climatematch compare data/mock/comparison_requests.json --metric pcm
//	climatematch compare requests.json --db reports.db
//	climatematch history --db reports.db
//	climatematch show mock-1 --db reports.db
package main
