package engine

import "github.com/mandelsoft/logging"

var REALM = logging.DefineRealm("engine", "spreadsheet calculation engine")

var log = logging.DefaultContext().Logger(REALM)
