package upstream

import (
	"fmt"
	"strings"
)

// BuildFilter builds the catalog where-clause: the company constraint ANDed
// with an OR across every promotion flag field being active (-1).
//
//	CodigoEmpresa=1 and (_OfertaCortijo=-1 or _OfertaFinca=-1)
func BuildFilter(companyCode int, promotionFields []string) (string, error) {
	clauses := make([]string, 0, len(promotionFields))
	for _, field := range promotionFields {
		if field = strings.TrimSpace(field); field != "" {
			clauses = append(clauses, field+"=-1")
		}
	}
	if len(clauses) == 0 {
		return "", ErrEmptyFilter
	}
	return fmt.Sprintf("CodigoEmpresa=%d and (%s)", companyCode, strings.Join(clauses, " or ")), nil
}
