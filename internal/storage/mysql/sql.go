package mysql

const upsertEventSQL = `
INSERT INTO events
  (doc_id, venue_name, fecha, code, payload)
VALUES
  (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  venue_name = VALUES(venue_name),
  fecha      = VALUES(fecha),
  code       = VALUES(code),
  payload    = VALUES(payload),
  updated_at = CURRENT_TIMESTAMP
`

const listEventsSQL = `
SELECT payload
FROM events
ORDER BY fecha, doc_id
`

const statusSQL = `
SELECT COUNT(*), MAX(updated_at)
FROM events
`

const pruneBeforeSQL = `
DELETE FROM events
WHERE fecha <> '' AND fecha < ?
`
