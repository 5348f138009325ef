package daa

import "github.com/tos-network/tos/logger"

var log, _ = logger.Get(logger.SubsystemTags.DAA)
