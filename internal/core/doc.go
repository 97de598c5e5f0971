// Package core provides the business logic for route management and
// transactional CSV imports.
//
// The package is independent of any transport or storage technology. It
// talks to relational storage through [Store] and to the file archive
// through [ObjectStore]; internal/database, internal/memstore and
// internal/storage provide the implementations.
//
// # Shared entities
//
// Coordinates and Locations are value objects shared between routes. The
// [Resolver] finds an existing row with the same value or creates one, and
// retries the lookup when a concurrent writer wins the insert. Each shared
// row carries an owner hint: the route that most recently claimed it. The
// hint never decides whether a row may be deleted; only the live usage
// count does.
//
// # Route lifecycle
//
// [RouteManager] creates, updates and deletes routes inside a caller's
// transaction. Names are unique case-insensitively, From and To must
// differ, and updates are guarded by the route version. Shared rows a
// route stops referencing are reclaimed after commit when nothing else
// uses them.
//
// # Imports
//
// [Importer] runs one CSV file as a saga:
//
//  1. the file is archived in the object store
//  2. an IN_PROGRESS [ImportOperation] is opened in the ledger
//  3. the file is parsed and validated as a whole batch
//  4. every new route is created in one relational transaction
//  5. the ledger entry is completed in that same transaction
//
// Any failure after step 1 runs the registered compensations in reverse
// order: the transaction is rolled back, the ledger entry is marked
// FAILED and the archived file is deleted. Validation rejections keep the
// file and fail the ledger entry with the collected issues.
//
// # Error Handling
//
// Domain failures are sentinel or typed errors matched with errors.Is.
// [MapError] turns any error into a [UserMessage] with a support code
// (ROUTE001-ROUTE006, CSV001-CSV004, IMP001-IMP002, OBJ001, DB001-DB004).
package core
