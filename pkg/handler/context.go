package handler

// DI for all handlers alike.

import (
	exprdb "github.com/njohner/Methods-in-Microbiomics/pkg/db"
)

type DBContext struct {
	Expr *exprdb.ExprDB
}
