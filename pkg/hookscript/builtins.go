package hookscript

// builtinFn is the signature shared by built-in script functions. Arguments
// arrive already evaluated.
type builtinFn func(eng *Engine, args []Value) (Value, error)

var builtins = map[string]builtinFn{
	"find_client":  builtinFindClient,
	"find_server":  builtinFindServer,
	"find_channel": builtinFindChannel,
}

func builtinFunction(name string) builtinFn {
	return builtins[name]
}

// Lookup builtins return an entity reference on success and the false
// literal on a miss, so scripts can write
// `if ($find_client(%nick) != $false)`.

func builtinFindClient(eng *Engine, args []Value) (Value, error) {
	if len(args) != 1 {
		return StringValue(falseLiteral), nil
	}
	name := args[0].text()
	if _, ok := eng.host.FindClient(name); !ok {
		return StringValue(falseLiteral), nil
	}
	return ClientValue(name), nil
}

func builtinFindServer(eng *Engine, args []Value) (Value, error) {
	if len(args) != 1 {
		return StringValue(falseLiteral), nil
	}
	name := args[0].text()
	if _, ok := eng.host.FindServer(name); !ok {
		return StringValue(falseLiteral), nil
	}
	return ClientValue(name), nil
}

func builtinFindChannel(eng *Engine, args []Value) (Value, error) {
	if len(args) != 1 {
		return StringValue(falseLiteral), nil
	}
	name := args[0].text()
	if _, ok := eng.host.FindChannel(name); !ok {
		return StringValue(falseLiteral), nil
	}
	return ChannelValue(name), nil
}
