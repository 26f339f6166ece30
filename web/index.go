package web

const indexPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>pathpool</title>
<style>
body { font-family: sans-serif; background: #222; color: #ddd; }
img { image-rendering: pixelated; border: 1px solid #444; }
label { display: inline-block; width: 5em; }
input { width: 6em; }
pre { font-size: 12px; }
</style>
</head>
<body>
<img id="frame" alt="render">
<form id="camera">
  <div>
    <label>origin</label>
    <input name="origin_x" value="13"> <input name="origin_y" value="2"> <input name="origin_z" value="3">
  </div>
  <div>
    <label>target</label>
    <input name="target_x" value="0"> <input name="target_y" value="0"> <input name="target_z" value="0">
  </div>
</form>
<div id="status"></div>
<pre id="stats"></pre>
<script>
const form = document.getElementById("camera");
const status = document.getElementById("status");

form.addEventListener("input", () => {
  fetch("/api/camera", { method: "POST", body: new URLSearchParams(new FormData(form)) })
    .then(r => r.json().then(body => { status.textContent = r.ok ? "" : body.error; }));
});

const events = new EventSource("/api/frames");
events.addEventListener("frame", e => {
  const update = JSON.parse(e.data);
  document.getElementById("frame").src = "data:image/png;base64," + update.imageData;
});

setInterval(() => {
  fetch("/api/stats").then(r => r.json()).then(s => {
    document.getElementById("stats").textContent = JSON.stringify(s, null, 2);
  });
}, 1000);
</script>
</body>
</html>
`
