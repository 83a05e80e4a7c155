// Package feedback defines the structured result a reviewer model must
// return: five 0-100 scores, snippet-anchored comments and general comments.
//
// [Parse] turns raw model output into a validated [Result]. Anything that does
// not satisfy the contract is reported as an [*InvalidResultError] naming the
// offending field, so callers can feed the message back to the model in a
// repair pass.
package feedback
