package consensus

import (
	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/externalapi"
)

func errMissingBlock(hash *externalapi.DomainHash) error {
	return consensuserrors.Newf(consensuserrors.ErrMissingParent, "block %s not found", hash)
}

func errMissingGHOSTDAGData(hash *externalapi.DomainHash) error {
	return consensuserrors.Newf(consensuserrors.ErrMissingParent, "GHOSTDAG data for block %s not found", hash)
}
