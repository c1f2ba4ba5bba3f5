package redis

// Key prefixes for primary entity storage.
const (
	prefixEventType   = "fanout:evtype:"
	prefixWebhook     = "fanout:wh:"
	prefixIntegration = "fanout:intg:"
	prefixEvent       = "fanout:evt:"
	prefixDelivery    = "fanout:del:"
	prefixDLQ         = "fanout:dlq:"
)

// Key prefixes for unique indexes.
const (
	uniqueEventTypeName = "fanout:u:evtype:name:"
	uniqueEventIdem     = "fanout:u:evt:idem:"
)

// Key prefixes for sorted set indexes.
const (
	zEventTypeAll    = "fanout:z:evtype:all"
	zEventTypeGroup  = "fanout:z:evtype:group:" // + group name
	zWebhookAll      = "fanout:z:wh:all"
	zWebhookOwner    = "fanout:z:wh:owner:" // + owner ID
	zIntegrationAll  = "fanout:z:intg:all"
	zIntegrationOwn  = "fanout:z:intg:owner:" // + owner ID
	zEventAll        = "fanout:z:evt:all"
	zDeliveryAll     = "fanout:z:del:all"  // every delivery by creation time
	zDeliveryWebhook = "fanout:z:del:wh:"  // + webhook ID
	zDeliveryEvt     = "fanout:z:del:evt:" // + event ID
	zDeliveryPend    = "fanout:z:del:pending"
	zDeliveryClaim   = "fanout:z:del:claimed" // in-flight dequeues by claim expiry
	zDeliveryDone    = "fanout:z:del:done"    // terminal deliveries by completion time
	zDLQAll          = "fanout:z:dlq:all"
	zDLQOwner        = "fanout:z:dlq:owner:" // + owner ID
	zDLQWebhook      = "fanout:z:dlq:wh:"    // + webhook ID
)

// Set indexes for active entities (hot-path resolution).
const (
	sEventTypeActive   = "fanout:s:evtype:active"
	sWebhookActive     = "fanout:s:wh:active"
	sIntegrationActive = "fanout:s:intg:active"
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}
