package constants

import (
	"github.com/go-playground/validator/v10"
)

type ContextKey string

const (
	PoolKey      ContextKey = "pool"
	TxKey        ContextKey = "tx"
	LoggerKey    ContextKey = "logger"
	RequestStart ContextKey = "request-start"
	ActorKey     ContextKey = "actor"
)

var Validate = validator.New(validator.WithRequiredStructEnabled())
