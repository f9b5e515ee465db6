package server

const indexPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>FaceCrop</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; }
#results img { max-width: 12rem; margin: .5rem; }
.error { color: #b00020; }
</style>
</head>
<body>
<h1>FaceCrop</h1>
<p>Upload one or more images to detect faces and create cropped versions with an optional circular mask.</p>
<form id="upload" method="post" action="/api/crop.zip" enctype="multipart/form-data">
	<p><input type="file" name="files[]" accept=".jpg,.jpeg,.png,.webp" multiple required></p>
	<p><label><input type="checkbox" name="circular"> Apply circular mask</label></p>
	<p><label><input type="checkbox" name="strict"> Strict mode (more accurate but may miss faces)</label></p>
	<p>
		<button type="button" id="preview">Preview</button>
		<button type="submit">Download all as zip</button>
	</p>
</form>
<div id="results"></div>
<script>
document.getElementById("preview").addEventListener("click", async () => {
	const form = document.getElementById("upload");
	const out = document.getElementById("results");
	out.textContent = "Processing...";
	const resp = await fetch("/api/crop", { method: "POST", body: new FormData(form) });
	const data = await resp.json();
	out.textContent = "";
	for (const r of data.results || []) {
		const item = document.createElement("div");
		if (r.ok) {
			const img = document.createElement("img");
			img.src = "data:image/png;base64," + r.output;
			img.title = r.output_name;
			item.appendChild(img);
		} else {
			item.className = "error";
			item.textContent = r.error;
		}
		out.appendChild(item);
	}
});
</script>
</body>
</html>
`
