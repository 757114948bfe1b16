package unpaywall

import "errors"

var errMissingIsOA = errors.New("is_oa field missing")
